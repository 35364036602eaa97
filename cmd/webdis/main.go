// Webdis is an HTTP and WebSocket gateway for Redis.
//
// Commands arrive as URL paths or JSON frames, run on a pooled backend
// connection and return as JSON, raw bytes, MessagePack or JSONP. Pub/sub
// channels stream over Server-Sent Events or WebSockets.
//
// Usage:
//
//	# Start with webdis.json from the working directory
//	webdis
//
//	# Start with an explicit configuration file
//	webdis run --config /etc/webdis/webdis.json
//	webdis /etc/webdis/webdis.json
//
//	# Check a configuration file without starting
//	webdis validate --config webdis.json
//
//	# Show version information
//	webdis version --output json
package main

import (
	"fmt"
	"os"

	"mercator-hq/webdis/pkg/cli"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

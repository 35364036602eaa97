// Package handlers provides the HTTP handlers of the gateway.
//
// # Handler Types
//
//   - CommandHandler: every command path (GET, POST, PUT, HEAD)
//   - SSEHandler: SUBSCRIBE and PSUBSCRIBE held open as an event stream
//   - WebSocketHandler: the /.json, /.raw and /.msg endpoints
//
// Health, version and metrics endpoints are registered by the telemetry
// packages directly.
//
// # Request Flow
//
// CommandHandler follows the same steps for every request:
//
//  1. Parse the request into a command and request context
//  2. Evaluate ACL rules
//  3. Hand subscribe-class commands to the SSE handler
//  4. Dispatch everything else through the connection pool
//  5. Encode the reply in the requested format and write it
//
// WebSocketHandler runs steps 1, 2, 4 and 5 per frame and multiplexes any
// number of subscriptions onto the same socket.
//
// # Error Handling
//
// Failures before a reply exists are written in the gateway's error body:
//
//	{
//	  "error": {
//	    "message": "command FLUSHALL denied by acl rule 0: command is disabled",
//	    "type": "permission_denied",
//	    "command": "FLUSHALL",
//	    "code": "acl_denied"
//	  }
//	}
//
// Backend error replies are encoded like any other reply, keyed by the
// command name, and sent with status 500.
package handlers

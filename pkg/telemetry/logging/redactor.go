package logging

import (
	"strconv"
	"strings"
)

// redacted replaces sensitive argument values in logs.
const redacted = "***"

// sensitiveCommands maps a command to the index from which its arguments
// are hidden. AUTH hides everything; HELLO hides from "AUTH user pass" on.
var sensitiveCommands = map[string]int{
	"AUTH":    0,
	"HELLO":   1,
	"MIGRATE": 5,
	"ACL":     1,
	"CONFIG":  2,
}

// CommandArgs renders args for a debug log line, hiding credentials.
// Binary arguments are shown by length only.
func CommandArgs(name string, args [][]byte) []string {
	from, sensitive := sensitiveCommands[strings.ToUpper(name)]

	out := make([]string, len(args))
	for i, a := range args {
		switch {
		case sensitive && i >= from:
			out[i] = redacted
		case !isPrintable(a):
			out[i] = "<" + strconv.Itoa(len(a)) + " bytes>"
		default:
			out[i] = string(a)
		}
	}
	return out
}

// RedactUserinfo hides the password half of a "user:password" string.
func RedactUserinfo(s string) string {
	user, _, ok := strings.Cut(s, ":")
	if !ok {
		return s
	}
	return user + ":" + redacted
}

func isPrintable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

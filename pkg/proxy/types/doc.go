// Package types defines the JSON error body the gateway writes when a
// request fails before the backend produces a reply.
//
//	{
//	  "error": {
//	    "message": "command FLUSHALL denied by acl rule 0: disabled",
//	    "type": "permission_denied",
//	    "command": "FLUSHALL",
//	    "code": "acl_denied"
//	  }
//	}
//
// Backend error replies are not wrapped this way; they keep the command
// name as the top-level key like any other reply.
package types

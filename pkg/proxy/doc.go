// Package proxy holds the HTTP-facing pieces of the gateway: error
// mapping, response writers and the handler and middleware subpackages.
//
// # Request Flow
//
//  1. Middleware: recovery, request ID, logging and metrics, CORS
//  2. The command handler parses the URL or body into a command
//  3. ACL rules are evaluated; denials stop here with 403
//  4. Subscribe-class commands switch to a Server-Sent Events stream,
//     everything else is dispatched through the connection pool
//  5. The reply is encoded as JSON, JSONP, raw text or MessagePack
//
// # Status Codes
//
//	200  reply (including nil replies)
//	400  malformed command
//	403  ACL denial
//	413  body larger than http_max_request_size
//	414  request URI longer than http_max_uri_length
//	500  backend error reply, or a reply the format cannot represent
//	503  pool exhausted or backend unreachable
//
// Failures before a reply exists are written as types.ErrorResponse.
// Backend error replies keep the command-keyed shape:
//
//	{"INCR":{"error":"ERR value is not an integer or out of range"}}
package proxy

/*
Package security groups the gateway's transport security.

Subpackage tls builds the client TLS configuration for backend connections,
including a file-watched client certificate that is swapped in without a
restart, and the server TLS configuration for the HTTP listener:

	clientTLS, reloader, err := tls.ClientConfig(&cfg.SSL, cfg.RedisHost)
	if reloader != nil {
		defer reloader.Close()
	}

	serverTLS, err := tls.ServerConfig(&cfg.Server.TLS)
*/
package security

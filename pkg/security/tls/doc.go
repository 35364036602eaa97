/*
Package tls builds the TLS configurations webdis uses on both sides of the
gateway.

# Listener

ServerConfig turns the server.tls section into a *tls.Config for the HTTP
listener. TLS 1.2 is the floor; cipher suites can be narrowed by name.

# Backend

ClientConfig turns the ssl section into a *tls.Config for dialing Redis:

	ssl:
	  enabled: true
	  ca_cert_bundle: /etc/webdis/ca.pem
	  path_to_certs: /etc/ssl/certs
	  client_cert: /etc/webdis/client.pem
	  client_key: /etc/webdis/client.key
	  redis_sni: redis.internal
	  watch_certs: true

With watch_certs set the client key pair is held by a CertificateReloader
that follows the files with fsnotify, so a rotated certificate is used by
the next connection the pool dials without restarting the process.
*/
package tls

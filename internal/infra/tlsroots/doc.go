// Package tlsroots loads TLS material for the server and the CLI: extra
// root CAs for clients, and a serving certificate that is reloaded when
// its files change.
package tlsroots

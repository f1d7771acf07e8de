// Package connection talks to a tokvault server on behalf of tokvault-cli.
//
// A Manager resolves the active Connection (server address, API key and
// optional caller keypair) into an HTTPClient. When a keypair is present
// every request carries the caller identity and an ed25519 signature over
// method, path, timestamp, nonce and body.
package connection

// Package token mints prefixed bearer secrets and the digests stored in
// their place.
//
// A Scheme pairs a plaintext prefix (tvcs_) with a digest prefix (tvch_)
// so a leaked value can be recognised by type. Secret bodies are
// crypto/rand bytes in Base64 RawURL; digests are hex SHA-256 of the whole
// plaintext, compared in constant time.
package token

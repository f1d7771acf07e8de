// Package cmap holds the sharded map behind the in-memory record store
// and the per-identity locks used by the custody service.
//
// Keys are spread over shards by murmur3. Identities that expose Bytes()
// are hashed on their raw bytes.
package cmap

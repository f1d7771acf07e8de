// Package memory provides in-memory storage for tokvault.
//
// Every record kind lives in a Table: a sharded concurrent map keyed by
// the record identity. Records are cloned on the way in and on the way
// out, so callers never share state with the store.
//
// Updates use optimistic locking: the caller passes the version it read
// and the write fails with a version conflict if the stored version has
// moved on. Token managers carry secondary indexes by issuer and by
// recipient.
package memory

// Package handler implements the JSON endpoints of the custody API.
//
// Every response uses the Response envelope. Identities are base58
// strings; the acting identity of a mutating call comes from the
// request context (see WithCaller).
package handler

// Package fees computes maker/taker fees and royalty splits.
//
// Compute is a pure function: every unit of the payment is accounted for
// and any overflow is rejected rather than wrapped.
package fees

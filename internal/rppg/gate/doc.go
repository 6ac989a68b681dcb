// Package gate implements the publication gate: the per-tick state machine
// that decides whether a heart-rate candidate is published, the last
// published value is held, or nothing is reported.
//
// States move acquiring -> candidate_pending -> published, and to holding
// whenever a tick fails while a published value is still inside the hold
// window. Every outcome carries a reason code; failures reported with a
// held value are prefixed "hold_".
package gate

// Package schedule validates recurrence rules and computes send instants.
//
// Everything here is pure: no I/O, no clock reads. Callers pass "now"
// explicitly so the 50-year horizon and preview windows are testable.
package schedule

// Package recurring implements the recurring campaign lifecycle.
//
// The service validates input, enforces the draft -> active <-> paused ->
// completed/cancelled state machine and the restricted-field rule, and
// exposes previews and analytics. It depends only on the Repository
// interface defined here; the scheduler that fires occurrences lives in
// internal/worker.
//
// Repository implementations live in repository/postgres/.
package recurring

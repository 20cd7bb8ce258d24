// Package apikey manages per-user API keys: issuing a secret that is shown
// once, scoping it, revoking it and rotating it. Verifying keys on incoming
// requests is not handled here.
//
// Repository implementations live in repository/postgres/.
package apikey

// Package httputil holds the JSON response and request helpers shared by
// the API handlers. All error bodies use the ErrorResponse envelope; 422
// responses add a code and per-field details.
package httputil

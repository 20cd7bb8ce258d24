package template

import "errors"

// ErrNotFound is returned when a template does not exist or belongs to
// another user.
var ErrNotFound = errors.New("template not found")

// Package template manages reusable email templates: CRUD, duplication
// with version tracking, and Liquid render previews.
//
// Repository implementations live in repository/postgres/.
package template

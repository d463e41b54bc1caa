// Package identity carries the authenticated caller through service calls.
package identity

// Actor is the authenticated user a request runs as. Built from JWT claims
// by the auth middleware; services never re-read the users table for it.
type Actor struct {
	UserID      string
	DisplayName string
	SystemAdmin bool
}

// Package middleware holds the HTTP middleware shared by all routes.
package middleware

// contextKey is a private type for context keys defined in this package.
type contextKey string

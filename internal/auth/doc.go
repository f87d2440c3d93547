// Package auth issues and verifies the bearer tokens accepted by the HTTP API.
//
// Tokens are HS256-signed JWTs carrying a subject and a scope. A read token
// may query the valve; a control token may also change its state. When no
// secret is configured the API runs unauthenticated.
package auth

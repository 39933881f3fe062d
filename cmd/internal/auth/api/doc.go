// Package api implements the HTTP surface of the service.
//
// Authentication is two-tier. Read endpoints accept a bearer access token.
// Write endpoints never accept a bearer token: each write must present a
// fresh device code in the Authorization header, "<device_type>:<code>",
// verified on the spot. Possession of a session is deliberately not enough
// to change state.
package api

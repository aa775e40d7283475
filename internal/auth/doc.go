// Package auth secures the parent admin interface.
//
// The appliance has a single parent account protected by a PIN. The PIN
// is stored as an Argon2id PHC hash in the settings table; successful
// login issues a short-lived HS256 JWT that the admin API middleware
// validates on every request.
package auth

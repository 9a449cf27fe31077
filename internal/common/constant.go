// Package common contains shared constants and sentinel errors used across
// LapLink server components.
package common

// BearerScheme is the Authorization header scheme that carries the access
// token on inbound requests.
const BearerScheme = "Bearer"

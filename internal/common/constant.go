// Package common contains shared constants and sentinel errors used across
// taskcamp components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the access
// token on inbound requests.
const AccessTokenHeaderName = "access_token"

// Cookie names used by the HTTP adapter for the token pair.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)

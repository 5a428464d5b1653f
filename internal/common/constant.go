// Package common contains shared constants and sentinel errors used across
// userledger components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// caller's access token on execute calls.
const AccessTokenHeaderName = "access_token"

// RequestIDHeaderName is the gRPC metadata key echoed back with the id
// assigned to each incoming request.
const RequestIDHeaderName = "x-request-id"

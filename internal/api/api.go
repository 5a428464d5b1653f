// Package api describes the userledger.v1.Registry gRPC service: method
// names and the JSON request/response messages exchanged over the
// grpcjson codec.
package api

import "github.com/dmitrijs2005/userledger/internal/models"

const ServiceName = "userledger.v1.Registry"

// Execute methods. They require an access token.
const (
	MethodRegister          = "Register"
	MethodSessionStart      = "SessionStart"
	MethodSessionEnd        = "SessionEnd"
	MethodSessionRefresh    = "SessionRefresh"
	MethodSetSessionTimeout = "SetSessionTimeout"
	MethodMigrate           = "Migrate"
)

// Query methods.
const (
	MethodSelect  = "Select"
	MethodSession = "Session"
	MethodUser    = "User"
)

// FullMethod returns the gRPC path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// IsExecute reports whether fullMethod mutates state.
func IsExecute(fullMethod string) bool {
	switch fullMethod {
	case FullMethod(MethodRegister),
		FullMethod(MethodSessionStart),
		FullMethod(MethodSessionEnd),
		FullMethod(MethodSessionRefresh),
		FullMethod(MethodSetSessionTimeout),
		FullMethod(MethodMigrate):
		return true
	}
	return false
}

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ExecuteResponse is returned by every execute method.
type ExecuteResponse struct {
	Attributes []Attribute `json:"attributes"`
}

// Attr returns the first attribute named key.
func (r *ExecuteResponse) Attr(key string) string {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

type RegisterRequest struct {
	Profile models.Profile `json:"profile"`
}

type SessionStartRequest struct {
	Seed string `json:"seed"`
}

type SessionEndRequest struct {
	Seed string `json:"seed"`
}

type SessionRefreshRequest struct {
	OldSeed string `json:"old_seed"`
	NewSeed string `json:"new_seed"`
}

type SetSessionTimeoutRequest struct {
	UserID  uint64 `json:"user_id"`
	Seconds uint64 `json:"seconds"`
}

type MigrateRequest struct{}

// SelectRequest with Fields omitted selects every field.
type SelectRequest struct {
	Fields []string `json:"fields"`
	Wallet *string  `json:"wallet,omitempty"`
}

type SelectResponse struct {
	Owner    *models.Owner            `json:"owner,omitempty"`
	Metadata *models.RegistryMetadata `json:"metadata,omitempty"`
	User     *models.User             `json:"user,omitempty"`
}

type SessionRequest struct {
	Address string `json:"address"`
	Seed    string `json:"seed"`
}

// SessionResponse carries a nil Session when none is live.
type SessionResponse struct {
	Session *models.Session `json:"session"`
}

// UserRequest sets exactly one of ID or Address.
type UserRequest struct {
	ID      *uint64 `json:"id,omitempty"`
	Address *string `json:"address,omitempty"`
}

type UserResponse struct {
	User *models.User `json:"user"`
}

package models

import "time"

// Block is the host-supplied position of the current call.
type Block struct {
	Height uint64
	Time   time.Time
}

// Session is stored under its derived key while active (or lazily expired).
type Session struct {
	UserID        uint64    `json:"user_id"`
	Address       string    `json:"address"`
	Time          time.Time `json:"time"`
	Height        uint64    `json:"height"`
	RefreshTime   time.Time `json:"refresh_time"`
	RefreshHeight uint64    `json:"refresh_height"`
}

// RegistryMetadata is the aggregate exposed by the select query.
type RegistryMetadata struct {
	NUsers uint32 `json:"n_users"`
}

// ContractInfo records the schema name and version the store was written with.
type ContractInfo struct {
	Name    string `json:"contract"`
	Version string `json:"version"`
}

// Package models holds the records persisted by the registry and the
// read-models assembled from them.
package models

import (
	"encoding/json"
	"errors"
	"time"
)

// Profile is stored verbatim at registration. Every field is optional and
// absence is preserved on read.
type Profile struct {
	Username      *string         `json:"username,omitempty"`
	Description   *string         `json:"description,omitempty"`
	Location      *Geolocation    `json:"location,omitempty"`
	ImageURL      *string         `json:"image_url,omitempty"`
	CoverImageURL *string         `json:"cover_image_url,omitempty"`
	FirstName     *string         `json:"first_name,omitempty"`
	LastName      *string         `json:"last_name,omitempty"`
	Email         *string         `json:"email,omitempty"`
	Phone         *string         `json:"phone,omitempty"`
	Website       *string         `json:"website,omitempty"`
	Color         *string         `json:"color,omitempty"`
	Socials       []SocialMediaID `json:"socials,omitempty"`
}

type Geolocation struct {
	StreetAddress *string `json:"street_address,omitempty"`
	Unit          *string `json:"unit,omitempty"`
	PostalCode    *string `json:"postal_code,omitempty"`
	Country       *string `json:"country,omitempty"`
	Region        *string `json:"region,omitempty"`
	City          *string `json:"city,omitempty"`
}

// SocialNetwork names the networks a SocialMediaID may point at.
type SocialNetwork string

const (
	Linkedin  SocialNetwork = "linkedin"
	Twitter   SocialNetwork = "twitter"
	Instagram SocialNetwork = "instagram"
	Telegram  SocialNetwork = "telegram"
	Discord   SocialNetwork = "discord"
	Facebook  SocialNetwork = "facebook"
	Tiktok    SocialNetwork = "tiktok"
)

var knownNetworks = map[SocialNetwork]struct{}{
	Linkedin: {}, Twitter: {}, Instagram: {}, Telegram: {}, Discord: {}, Facebook: {}, Tiktok: {},
}

// SocialMediaID is a tagged handle, encoded as {"<network>": "<handle>"}.
type SocialMediaID struct {
	Network SocialNetwork
	Handle  string
}

func (s SocialMediaID) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[SocialNetwork]string{s.Network: s.Handle})
}

func (s *SocialMediaID) UnmarshalJSON(data []byte) error {
	var raw map[SocialNetwork]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return errors.New("social media id: expected exactly one network")
	}
	for n, h := range raw {
		if _, ok := knownNetworks[n]; !ok {
			return errors.New("social media id: unknown network " + string(n))
		}
		s.Network, s.Handle = n, h
	}
	return nil
}

// Metadata is written once at registration.
type Metadata struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserConfig struct {
	SessionTimeoutSeconds uint64 `json:"session_timeout_seconds"`
}

// User is the read-model assembled from a user's records.
type User struct {
	ID       uint64     `json:"id"`
	Metadata Metadata   `json:"metadata"`
	Profile  Profile    `json:"profile"`
	Wallets  []string   `json:"wallets"`
	Config   UserConfig `json:"config"`
}

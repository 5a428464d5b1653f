// Package registry is the state layer of the identity and session registry.
//
// It owns identifier allocation, profile and session persistence, session-key
// derivation, the session lifecycle and owner-privilege checks. Every
// operation takes the store explicitly; atomicity comes from the caller
// running the whole call inside one kv.Transactor.Update.
package registry

import (
	"errors"

	"github.com/dmitrijs2005/userledger/internal/kv"
	"github.com/dmitrijs2005/userledger/internal/logging"
	"github.com/dmitrijs2005/userledger/internal/models"
)

const (
	ContractName    = "userledger"
	ContractVersion = "0.1.0"

	// DefaultSessionTimeout is the per-user timeout, in seconds, written at
	// registration (48h).
	DefaultSessionTimeout uint64 = 48 * 60 * 60
)

// walletKey addresses one entry of the (id, address) reverse index.
type walletKey struct {
	id      uint64
	address string
}

func walletKeyBytes(k walletKey) []byte {
	return kv.Join(walletPrefix(k.id), []byte(k.address))
}

func walletPrefix(id uint64) []byte {
	return kv.LengthPrefixed(kv.Uint64Bytes(id))
}

var (
	ownerRecord     = kv.NewItem[models.Owner]("owner")
	profiles        = kv.NewMap[uint64, models.Profile]("profiles", kv.Uint64Key)
	metadata        = kv.NewMap[uint64, models.Metadata]("metadata", kv.Uint64Key)
	sessionTimeouts = kv.NewMap[uint64, uint64]("session_timeouts", kv.Uint64Key)
	sessions        = kv.NewMap[string, models.Session]("sessions", kv.StringKey)
	addressToID     = kv.NewMap[string, uint64]("address_to_id", kv.StringKey)
	idToAddress     = kv.NewMap[walletKey, bool]("id_2_addr", walletKeyBytes)
	idCounter       = kv.NewItem[uint64]("id_counter")
	userCount       = kv.NewItem[uint32]("user_count")
	contractInfo    = kv.NewItem[models.ContractInfo]("contract_info")
)

// Registry carries the policy knobs of the state layer. It holds no state of
// its own and is safe to share.
type Registry struct {
	defaultTimeout uint64
	log            logging.Logger
}

type Option func(*Registry)

// WithDefaultSessionTimeout overrides the timeout written for new users.
func WithDefaultSessionTimeout(seconds uint64) Option {
	return func(r *Registry) { r.defaultTimeout = seconds }
}

func WithLogger(l logging.Logger) Option {
	return func(r *Registry) { r.log = l }
}

func New(opts ...Option) *Registry {
	r := &Registry{
		defaultTimeout: DefaultSessionTimeout,
		log:            logging.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	r.log = r.log.With("module", "registry")
	return r
}

// DefaultTimeout reports the timeout applied at registration.
func (r *Registry) DefaultTimeout() uint64 { return r.defaultTimeout }

// notFoundAs maps kv.ErrNotFound to the domain sentinel, leaving other
// errors untouched.
func notFoundAs(err, sentinel error) error {
	if errors.Is(err, kv.ErrNotFound) {
		return sentinel
	}
	return err
}

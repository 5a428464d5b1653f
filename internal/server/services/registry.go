// Package services is the Execute/Query façade over the registry state
// layer. Every Execute call runs in one store transaction with its own block
// height; queries read committed state and never write.
package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/userledger/internal/acl"
	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/kv"
	"github.com/dmitrijs2005/userledger/internal/logging"
	"github.com/dmitrijs2005/userledger/internal/models"
	"github.com/dmitrijs2005/userledger/internal/registry"
	"github.com/dmitrijs2005/userledger/internal/server/metrics"
)

const (
	ActionInstantiate       = "instantiate"
	ActionRegister          = "register"
	ActionSessionStart      = "session_start"
	ActionSessionEnd        = "session_end"
	ActionSessionRefresh    = "session_refresh"
	ActionSetSessionTimeout = "set_session_timeout"
	ActionMigrate           = "migrate"
)

var (
	blockHeight = kv.NewItem[uint64]("block_height")
	blockTime   = kv.NewItem[time.Time]("block_time")
)

// Attribute is one key/value pair reported by an Execute call.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Response struct {
	Attributes []Attribute `json:"attributes"`
}

// Attr returns the first attribute named key.
func (r *Response) Attr(key string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Registry serializes Execute calls over a kv.Transactor.
type Registry struct {
	mu      sync.Mutex
	store   kv.Transactor
	core    *registry.Registry
	acl     acl.Checker
	logger  logging.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

type Option func(*Registry)

func WithACL(c acl.Checker) Option {
	return func(r *Registry) { r.acl = c }
}

func WithLogger(l logging.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithClock replaces the source of block time.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(store kv.Transactor, core *registry.Registry, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		core:    core,
		acl:     acl.Deny{},
		logger:  logging.Nop(),
		metrics: metrics.Nop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With("module", "registry_service")
	return r
}

type executeFunc func(ctx context.Context, s kv.Store, block models.Block) ([]Attribute, error)

func (r *Registry) execute(ctx context.Context, action, sender string, fn executeFunc) (*Response, error) {
	if sender == "" {
		return nil, common.ErrInvalidAddress
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	var attrs []Attribute
	err := r.store.Update(ctx, func(ctx context.Context, s kv.Store) error {
		if action != ActionInstantiate {
			if _, err := r.core.LoadOwner(ctx, s); err != nil {
				return err
			}
		}
		block, err := r.nextBlock(ctx, s)
		if err != nil {
			return err
		}
		attrs, err = fn(ctx, s, block)
		return err
	})
	r.metrics.RecordExecute(action, err, time.Since(start))

	if err != nil {
		r.logger.Warn(ctx, "execute failed", "action", action, "sender", sender, "error", err)
		return nil, err
	}
	r.logger.Info(ctx, "execute", "action", action, "sender", sender)
	return &Response{Attributes: append([]Attribute{{Key: "action", Value: action}}, attrs...)}, nil
}

func (r *Registry) nextBlock(ctx context.Context, s kv.Store) (models.Block, error) {
	h, _, err := blockHeight.MayLoad(ctx, s)
	if err != nil {
		return models.Block{}, err
	}
	h++
	if err := blockHeight.Save(ctx, s, h); err != nil {
		return models.Block{}, err
	}

	// block time never goes backwards, even when the wall clock does
	last, _, err := blockTime.MayLoad(ctx, s)
	if err != nil {
		return models.Block{}, err
	}
	now := r.now().UTC()
	if now.Before(last) {
		now = last
	}
	if err := blockTime.Save(ctx, s, now); err != nil {
		return models.Block{}, err
	}
	return models.Block{Height: h, Time: now}, nil
}

// Instantiate initializes an empty store. owner defaults to the sender.
func (r *Registry) Instantiate(ctx context.Context, sender string, owner *models.Owner) (*Response, error) {
	return r.execute(ctx, ActionInstantiate, sender, func(ctx context.Context, s kv.Store, _ models.Block) ([]Attribute, error) {
		if err := r.core.Initialize(ctx, s, sender, owner); err != nil {
			return nil, err
		}
		o, err := r.core.LoadOwner(ctx, s)
		if err != nil {
			return nil, err
		}
		return []Attribute{{Key: "owner", Value: o.Principal}, {Key: "owner_kind", Value: o.Kind.String()}}, nil
	})
}

// EnsureInstantiated instantiates the store unless that already happened,
// then publishes the current user count.
func (r *Registry) EnsureInstantiated(ctx context.Context, sender string, owner *models.Owner) error {
	if _, err := r.Instantiate(ctx, sender, owner); err != nil && !errors.Is(err, common.ErrAlreadyInstantiated) {
		return err
	}
	return r.store.View(ctx, func(ctx context.Context, s kv.Reader) error {
		n, err := r.core.UserCount(ctx, s)
		if err != nil {
			return err
		}
		r.metrics.SetRegisteredUsers(n)
		return nil
	})
}

// Register allocates an id for sender and stores the profile.
func (r *Registry) Register(ctx context.Context, sender string, profile models.Profile) (*Response, error) {
	var count uint32
	resp, err := r.execute(ctx, ActionRegister, sender, func(ctx context.Context, s kv.Store, block models.Block) ([]Attribute, error) {
		id, err := r.core.Allocate(ctx, s, sender)
		if err != nil {
			return nil, err
		}
		if err := r.core.Register(ctx, s, id, profile, block.Time); err != nil {
			return nil, err
		}
		if count, err = r.core.UserCount(ctx, s); err != nil {
			return nil, err
		}
		return []Attribute{{Key: "user_id", Value: strconv.FormatUint(id, 10)}}, nil
	})
	if err != nil {
		return nil, err
	}
	r.metrics.SetRegisteredUsers(count)
	return resp, nil
}

func (r *Registry) SessionStart(ctx context.Context, sender, seed string) (*Response, error) {
	return r.execute(ctx, ActionSessionStart, sender, func(ctx context.Context, s kv.Store, block models.Block) ([]Attribute, error) {
		id, err := r.core.ResolveID(ctx, s, sender)
		if err != nil {
			return nil, err
		}
		key := registry.DeriveSessionKey(sender, id, seed)
		if _, err := r.core.StartSession(ctx, s, sender, id, key, block); err != nil {
			return nil, err
		}
		return []Attribute{{Key: "session_key", Value: key}}, nil
	})
}

func (r *Registry) SessionEnd(ctx context.Context, sender, seed string) (*Response, error) {
	return r.execute(ctx, ActionSessionEnd, sender, func(ctx context.Context, s kv.Store, _ models.Block) ([]Attribute, error) {
		id, err := r.core.ResolveID(ctx, s, sender)
		if err != nil {
			return nil, err
		}
		key := registry.DeriveSessionKey(sender, id, seed)
		if err := r.core.EndSession(ctx, s, key); err != nil {
			return nil, err
		}
		return []Attribute{{Key: "session_key", Value: key}}, nil
	})
}

func (r *Registry) SessionRefresh(ctx context.Context, sender, oldSeed, newSeed string) (*Response, error) {
	return r.execute(ctx, ActionSessionRefresh, sender, func(ctx context.Context, s kv.Store, block models.Block) ([]Attribute, error) {
		id, err := r.core.ResolveID(ctx, s, sender)
		if err != nil {
			return nil, err
		}
		oldKey := registry.DeriveSessionKey(sender, id, oldSeed)
		newKey := registry.DeriveSessionKey(sender, id, newSeed)
		if _, err := r.core.RefreshSession(ctx, s, sender, id, oldKey, newKey, block); err != nil {
			return nil, err
		}
		return []Attribute{{Key: "session_key", Value: newKey}}, nil
	})
}

// SetSessionTimeout changes a user's timeout. Only the owner may call it.
func (r *Registry) SetSessionTimeout(ctx context.Context, sender string, userID, seconds uint64) (*Response, error) {
	return r.execute(ctx, ActionSetSessionTimeout, sender, func(ctx context.Context, s kv.Store, _ models.Block) ([]Attribute, error) {
		if err := r.core.RequireOwnerPrivilege(ctx, s, r.acl, sender, ActionSetSessionTimeout); err != nil {
			return nil, err
		}
		if err := r.core.SetSessionTimeout(ctx, s, userID, seconds); err != nil {
			return nil, err
		}
		return []Attribute{
			{Key: "user_id", Value: strconv.FormatUint(userID, 10)},
			{Key: "session_timeout", Value: strconv.FormatUint(seconds, 10)},
		}, nil
	})
}

// Migrate only restamps the schema version.
func (r *Registry) Migrate(ctx context.Context, sender string) (*Response, error) {
	return r.execute(ctx, ActionMigrate, sender, func(ctx context.Context, s kv.Store, _ models.Block) ([]Attribute, error) {
		if err := r.core.RecordVersion(ctx, s); err != nil {
			return nil, err
		}
		return []Attribute{{Key: "version", Value: registry.ContractVersion}}, nil
	})
}

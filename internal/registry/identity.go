package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/kv"
	"github.com/dmitrijs2005/userledger/internal/models"
)

// Allocate assigns the next user id to address and records the mapping in
// both directions.
func (r *Registry) Allocate(ctx context.Context, s kv.Store, address string) (uint64, error) {
	exists, err := addressToID.Has(ctx, s, address)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("%w: %s", common.ErrUserExists, address)
	}

	last, _, err := idCounter.MayLoad(ctx, s)
	if err != nil {
		return 0, err
	}
	id := last + 1
	if err := idCounter.Save(ctx, s, id); err != nil {
		return 0, err
	}
	if err := addressToID.Save(ctx, s, address, id); err != nil {
		return 0, err
	}
	if err := idToAddress.Save(ctx, s, walletKey{id: id, address: address}, true); err != nil {
		return 0, err
	}

	n, _, err := userCount.MayLoad(ctx, s)
	if err != nil {
		return 0, err
	}
	if err := userCount.Save(ctx, s, n+1); err != nil {
		return 0, err
	}

	r.log.Debug(ctx, "user id allocated", "address", address, "user_id", id)
	return id, nil
}

// Register stores the profile as given together with its metadata and the
// default session timeout.
func (r *Registry) Register(ctx context.Context, s kv.Store, id uint64, profile models.Profile, now time.Time) error {
	if err := profiles.Save(ctx, s, id, profile); err != nil {
		return err
	}
	meta := models.Metadata{CreatedAt: now, UpdatedAt: now}
	if err := metadata.Save(ctx, s, id, meta); err != nil {
		return err
	}
	return sessionTimeouts.Save(ctx, s, id, r.defaultTimeout)
}

func (r *Registry) ResolveID(ctx context.Context, s kv.Reader, address string) (uint64, error) {
	id, ok, err := addressToID.MayLoad(ctx, s, address)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", common.ErrUserNotFound, address)
	}
	return id, nil
}

func (r *Registry) UserExists(ctx context.Context, s kv.Reader, address string) (bool, error) {
	return addressToID.Has(ctx, s, address)
}

// UserCount returns the number of registrations so far.
func (r *Registry) UserCount(ctx context.Context, s kv.Reader) (uint32, error) {
	n, _, err := userCount.MayLoad(ctx, s)
	return n, err
}

// LoadWallets lists every address associated with id, ascending.
func (r *Registry) LoadWallets(ctx context.Context, s kv.Reader, id uint64) ([]string, error) {
	wallets := []string{}
	err := idToAddress.Scan(ctx, s, walletPrefix(id), func(rest []byte, _ bool) error {
		wallets = append(wallets, string(rest))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallets, nil
}

// LoadUser assembles the read-model for id. A missing sub-record yields
// ErrUserNotFound.
func (r *Registry) LoadUser(ctx context.Context, s kv.Reader, id uint64) (*models.User, error) {
	meta, err := metadata.Load(ctx, s, id)
	if err != nil {
		return nil, notFoundAs(err, common.ErrUserNotFound)
	}
	profile, err := profiles.Load(ctx, s, id)
	if err != nil {
		return nil, notFoundAs(err, common.ErrUserNotFound)
	}
	timeout, err := sessionTimeouts.Load(ctx, s, id)
	if err != nil {
		return nil, notFoundAs(err, common.ErrUserNotFound)
	}
	wallets, err := r.LoadWallets(ctx, s, id)
	if err != nil {
		return nil, err
	}

	return &models.User{
		ID:       id,
		Metadata: meta,
		Profile:  profile,
		Wallets:  wallets,
		Config:   models.UserConfig{SessionTimeoutSeconds: timeout},
	}, nil
}

// SetSessionTimeout replaces the timeout of an existing user. Metadata is
// left as it is.
func (r *Registry) SetSessionTimeout(ctx context.Context, s kv.Store, id uint64, seconds uint64) error {
	_, err := sessionTimeouts.Update(ctx, s, id, func(_ uint64, ok bool) (uint64, error) {
		if !ok {
			return 0, fmt.Errorf("%w: id %d", common.ErrUserNotFound, id)
		}
		return seconds, nil
	})
	return err
}

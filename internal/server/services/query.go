package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/kv"
	"github.com/dmitrijs2005/userledger/internal/models"
	"github.com/dmitrijs2005/userledger/internal/registry"
)

// Select field names.
const (
	FieldOwner    = "owner"
	FieldMetadata = "metadata"
	FieldUser     = "user"
)

// SelectResponse is sparse: only requested fields are set.
type SelectResponse struct {
	Owner    *models.Owner            `json:"owner,omitempty"`
	Metadata *models.RegistryMetadata `json:"metadata,omitempty"`
	User     *models.User             `json:"user,omitempty"`
}

// UserTarget picks a user by exactly one of ID or Address.
type UserTarget struct {
	ID      *uint64 `json:"id,omitempty"`
	Address *string `json:"address,omitempty"`
}

// Select computes each requested field on its own. A nil fields slice
// selects everything. The user is looked up by wallet and left nil when the
// wallet is absent or does not resolve to a loadable user.
func (r *Registry) Select(ctx context.Context, fields []string, wallet *string) (*SelectResponse, error) {
	want := func(f string) bool { return fields == nil || slices.Contains(fields, f) }

	out := &SelectResponse{}
	err := r.store.View(ctx, func(ctx context.Context, s kv.Reader) error {
		if want(FieldOwner) {
			o, err := r.core.LoadOwner(ctx, s)
			if err != nil {
				return err
			}
			out.Owner = &o
		}
		if want(FieldMetadata) {
			n, err := r.core.UserCount(ctx, s)
			if err != nil {
				return err
			}
			out.Metadata = &models.RegistryMetadata{NUsers: n}
		}
		if want(FieldUser) && wallet != nil {
			u, err := r.userByAddress(ctx, s, *wallet)
			switch {
			case err == nil:
				out.User = u
			case errors.Is(err, kv.ErrStore),
				errors.Is(err, context.Canceled),
				errors.Is(err, context.DeadlineExceeded):
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Registry) userByAddress(ctx context.Context, s kv.Reader, address string) (*models.User, error) {
	id, err := r.core.ResolveID(ctx, s, address)
	if err != nil {
		return nil, err
	}
	return r.core.LoadUser(ctx, s, id)
}

// Session returns the live session for (address, seed), or nil when it is
// absent or expired.
func (r *Registry) Session(ctx context.Context, address, seed string) (*models.Session, error) {
	var out *models.Session
	err := r.store.View(ctx, func(ctx context.Context, s kv.Reader) error {
		id, err := r.core.ResolveID(ctx, s, address)
		if err != nil {
			return err
		}
		key := registry.DeriveSessionKey(address, id, seed)
		sess, err := r.core.ValidateSession(ctx, s, id, key, r.now())
		switch {
		case err == nil:
			out = sess
		case errors.Is(err, common.ErrSessionExpired), errors.Is(err, common.ErrSessionNotFound):
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Registry) User(ctx context.Context, target UserTarget) (*models.User, error) {
	if (target.ID == nil) == (target.Address == nil) {
		return nil, fmt.Errorf("%w: user target needs exactly one of id, address", common.ErrInvalidRequest)
	}

	var out *models.User
	err := r.store.View(ctx, func(ctx context.Context, s kv.Reader) error {
		var err error
		if target.ID != nil {
			out, err = r.core.LoadUser(ctx, s, *target.ID)
		} else {
			out, err = r.userByAddress(ctx, s, *target.Address)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

package registry

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/userledger/internal/acl"
	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/kv"
	"github.com/dmitrijs2005/userledger/internal/models"
)

// Initialize resets the counters and records the owner. When owner is nil the
// sender becomes the direct owner. A store that already has an owner is
// left alone.
func (r *Registry) Initialize(ctx context.Context, s kv.Store, sender string, owner *models.Owner) error {
	_, ok, err := ownerRecord.MayLoad(ctx, s)
	if err != nil {
		return err
	}
	if ok {
		return common.ErrAlreadyInstantiated
	}

	o := models.AddressOwner(sender)
	if owner != nil {
		o = *owner
	}
	if err := idCounter.Save(ctx, s, 0); err != nil {
		return err
	}
	if err := userCount.Save(ctx, s, 0); err != nil {
		return err
	}
	if err := ownerRecord.Save(ctx, s, o); err != nil {
		return err
	}
	if err := r.RecordVersion(ctx, s); err != nil {
		return err
	}

	r.log.Info(ctx, "registry initialized", "owner_kind", o.Kind.String(), "owner", o.Principal)
	return nil
}

// RecordVersion stamps the schema name and version.
func (r *Registry) RecordVersion(ctx context.Context, s kv.Store) error {
	return contractInfo.Save(ctx, s, models.ContractInfo{Name: ContractName, Version: ContractVersion})
}

func (r *Registry) Version(ctx context.Context, s kv.Reader) (models.ContractInfo, error) {
	info, err := contractInfo.Load(ctx, s)
	return info, notFoundAs(err, common.ErrNotInstantiated)
}

func (r *Registry) LoadOwner(ctx context.Context, s kv.Reader) (models.Owner, error) {
	o, err := ownerRecord.Load(ctx, s)
	return o, notFoundAs(err, common.ErrNotInstantiated)
}

// RequireOwnerPrivilege fails with ErrNotAuthorized unless caller may perform
// action as owner. Delegated owners are resolved through checker; its own
// errors are returned wrapped.
func (r *Registry) RequireOwnerPrivilege(ctx context.Context, s kv.Reader, checker acl.Checker, caller, action string) error {
	owner, err := r.LoadOwner(ctx, s)
	if err != nil {
		return err
	}

	switch owner.Kind {
	case models.OwnerAddress:
		if caller != owner.Principal {
			return common.ErrNotAuthorized
		}
		return nil
	case models.OwnerACL:
		allowed, err := checker.IsAllowed(ctx, owner.Principal, caller, action)
		if err != nil {
			return fmt.Errorf("acl query %s: %w", action, err)
		}
		if !allowed {
			return common.ErrNotAuthorized
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown owner kind %v", kv.ErrStore, owner.Kind)
	}
}

package registry

import (
	"context"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/kv"
	"github.com/dmitrijs2005/userledger/internal/models"
)

// DeriveSessionKey hashes le64(userID) || address || seed with SHA-512 and
// returns the digest as upper-case hex.
func DeriveSessionKey(address string, userID uint64, seed string) string {
	h := sha512.New()
	h.Write(binary.LittleEndian.AppendUint64(nil, userID))
	h.Write([]byte(address))
	h.Write([]byte(seed))
	return fmt.Sprintf("%X", h.Sum(nil))
}

// StartSession opens a session under key. An occupied key is a conflict.
func (r *Registry) StartSession(ctx context.Context, s kv.Store, address string, userID uint64, key string, block models.Block) (*models.Session, error) {
	sess := models.Session{
		UserID:        userID,
		Address:       address,
		Time:          block.Time,
		Height:        block.Height,
		RefreshTime:   block.Time,
		RefreshHeight: block.Height,
	}
	if err := r.putSession(ctx, s, key, sess); err != nil {
		return nil, err
	}
	r.log.Debug(ctx, "session started", "user_id", userID, "height", block.Height)
	return &sess, nil
}

func (r *Registry) putSession(ctx context.Context, s kv.Store, key string, sess models.Session) error {
	occupied, err := sessions.Has(ctx, s, key)
	if err != nil {
		return err
	}
	if occupied {
		return fmt.Errorf("%w: session key in use", common.ErrNotAuthorized)
	}
	return sessions.Save(ctx, s, key, sess)
}

// ValidateSession returns the session under key if it has not expired. It
// never writes.
func (r *Registry) ValidateSession(ctx context.Context, s kv.Reader, userID uint64, key string, now time.Time) (*models.Session, error) {
	sess, ok, err := sessions.MayLoad(ctx, s, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrSessionNotFound
	}
	timeout, err := sessionTimeouts.Load(ctx, s, userID)
	if err != nil {
		return nil, notFoundAs(err, common.ErrUserNotFound)
	}
	if expired(now, sess.RefreshTime, timeout) {
		return nil, common.ErrSessionExpired
	}
	return &sess, nil
}

// expired compares whole seconds; a session is still valid at exactly
// refresh+timeout.
func expired(now, refresh time.Time, timeout uint64) bool {
	deadline := refresh.Unix()
	if timeout > uint64(math.MaxInt64-max(deadline, 0)) {
		return false
	}
	return now.Unix() > deadline+int64(timeout)
}

// EndSession removes whatever is stored under key.
func (r *Registry) EndSession(ctx context.Context, s kv.Store, key string) error {
	return sessions.Remove(ctx, s, key)
}

// RefreshSession moves a valid session from oldKey to newKey. The new record
// keeps the original creation time and height. If newKey is occupied the
// call fails with ErrNotAuthorized and the caller's transaction restores
// oldKey.
func (r *Registry) RefreshSession(ctx context.Context, s kv.Store, address string, userID uint64, oldKey, newKey string, block models.Block) (*models.Session, error) {
	old, err := r.ValidateSession(ctx, s, userID, oldKey, block.Time)
	if err != nil {
		return nil, err
	}
	if err := sessions.Remove(ctx, s, oldKey); err != nil {
		return nil, err
	}

	sess := models.Session{
		UserID:        userID,
		Address:       address,
		Time:          old.Time,
		Height:        old.Height,
		RefreshTime:   block.Time,
		RefreshHeight: block.Height,
	}
	if err := r.putSession(ctx, s, newKey, sess); err != nil {
		return nil, err
	}
	r.log.Debug(ctx, "session refreshed", "user_id", userID, "height", block.Height)
	return &sess, nil
}

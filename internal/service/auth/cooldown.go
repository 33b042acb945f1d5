package auth

import (
	"context"
	"time"

	domain "ordering-service/internal/domain/auth"
	xerrors "ordering-service/internal/pkg/errors"
	"ordering-service/internal/pkg/kvstore"
)

const DefaultResendCooldown = 60 * time.Second

// Cooldown gates re-sending a one-time code. It is an elapsed-time check
// against the last send, not a lock: every call after the window passes.
type Cooldown struct {
	store  *kvstore.Store
	window time.Duration
	now    func() time.Time
}

func NewCooldown(store *kvstore.Store, window time.Duration, now func() time.Time) *Cooldown {
	if window <= 0 {
		window = DefaultResendCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &Cooldown{store: store, window: window, now: now}
}

func cooldownKey(contact string) string {
	return kvstore.KeyCodeSentPrefix + contact
}

// Status reports whether a code may be sent to contact now.
func (c *Cooldown) Status(ctx context.Context, contact string) (domain.ResendStatus, error) {
	var sentAt time.Time
	found, err := c.store.Get(ctx, cooldownKey(contact), &sentAt)
	if err != nil {
		return domain.ResendStatus{}, xerrors.Transient(err)
	}
	if !found {
		return domain.ResendStatus{CanResend: true}, nil
	}

	remaining := c.window - c.now().Sub(sentAt)
	if remaining <= 0 {
		return domain.ResendStatus{CanResend: true}, nil
	}
	seconds := int((remaining + time.Second - 1) / time.Second)
	return domain.ResendStatus{CanResend: false, RetryInSeconds: seconds}, nil
}

// MarkSent starts the window for contact.
func (c *Cooldown) MarkSent(ctx context.Context, contact string) error {
	if err := c.store.Set(ctx, cooldownKey(contact), c.now()); err != nil {
		return xerrors.Transient(err)
	}
	return nil
}

func (c *Cooldown) Reset(ctx context.Context, contact string) error {
	return c.store.Remove(ctx, cooldownKey(contact))
}

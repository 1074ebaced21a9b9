package guard

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/olv-group/prospect-intel/internal/model"
)

// MuteStore looks up mute windows.
type MuteStore interface {
	// HasActiveMute reports whether any mute with until > at covers scope.
	// Each mute field must be NULL or equal to the scope value.
	HasActiveMute(ctx context.Context, scope model.MuteScope, at time.Time) (bool, error)
}

// Muter answers whether alert delivery is muted for a scope.
type Muter struct {
	store MuteStore
	now   func() time.Time
}

// NewMuter creates a Muter backed by store.
func NewMuter(store MuteStore) *Muter {
	return &Muter{store: store, now: time.Now}
}

// IsMuted makes a single store lookup. Store errors are returned to the
// caller and never treated as "not muted".
func (m *Muter) IsMuted(ctx context.Context, scope model.MuteScope) (bool, error) {
	muted, err := m.store.HasActiveMute(ctx, scope, m.now().UTC())
	if err != nil {
		return false, eris.Wrap(err, "guard: check mute")
	}
	return muted, nil
}

package jobs

import (
	"context"
	"fmt"
	"log"
	"time"
)

type AccountStore interface {
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Reaper deletes accounts that were never verified within the retention
// window. Dependent fee entries and batch memberships cascade at the storage
// layer, so the delete leaves no orphaned references.
type Reaper struct {
	store     AccountStore
	retention time.Duration
	now       func() time.Time
}

func NewReaper(store AccountStore, retention time.Duration) *Reaper {
	return &Reaper{store: store, retention: retention, now: time.Now}
}

func (r *Reaper) Run(ctx context.Context) error {
	cutoff := r.now().UTC().Add(-r.retention)
	count, err := r.store.DeleteUnverifiedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("reap unverified accounts: %w", err)
	}
	if count > 0 {
		accountsReaped.Add(float64(count))
		log.Printf("reaper: deleted %d unverified accounts older than %s", count, r.retention)
	}
	return nil
}

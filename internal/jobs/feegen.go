package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"classhub/server/internal/feeschedule"
	"classhub/server/internal/model"
)

// BillingStore is the slice of storage the fee generation job needs: the
// student roster and an insert-if-absent ledger writer.
type BillingStore interface {
	ListBillingStudents(ctx context.Context) ([]model.BillingStudent, error)
	InsertFeeIfAbsent(ctx context.Context, entry model.FeeEntry) (bool, error)
}

// FeeGenerator creates the monthly fee ledger rows. Running it any number of
// times within the same billing period leaves the ledger in the same state as
// running it once; the (student, period) uniqueness in the store is the only
// idempotence mechanism, so invocation cadence does not matter.
type FeeGenerator struct {
	store    BillingStore
	schedule feeschedule.Schedule
	now      func() time.Time
}

func NewFeeGenerator(store BillingStore, schedule feeschedule.Schedule) *FeeGenerator {
	return &FeeGenerator{store: store, schedule: schedule, now: time.Now}
}

// PeriodKey is the billing period for t, e.g. "March 2025".
func PeriodKey(t time.Time) string {
	return t.UTC().Format("January 2006")
}

func (g *FeeGenerator) Run(ctx context.Context) error {
	students, err := g.store.ListBillingStudents(ctx)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	if len(students) == 0 {
		return nil
	}

	period := PeriodKey(g.now())
	var created, skipped, failed int
	for _, student := range students {
		baseFee, ok := g.schedule.BaseFee(student.Standard)
		if !ok {
			skipped++
			log.Printf("fee generation: student %s has unmapped standard %q, skipping", student.ID, student.Standard)
			continue
		}
		amount := baseFee
		if student.TransportEnabled && student.PickupPoint != "" {
			amount += g.schedule.Surcharge(student.PickupPoint)
		}

		inserted, err := g.store.InsertFeeIfAbsent(ctx, model.FeeEntry{
			ID:        uuid.NewString(),
			StudentID: student.ID,
			Amount:    amount,
			Period:    period,
		})
		if err != nil {
			failed++
			log.Printf("fee generation: insert for student %s failed: %v", student.ID, err)
			continue
		}
		if inserted {
			created++
		}
	}

	feeRunsTotal.Inc()
	feeEntriesCreated.Add(float64(created))
	if created > 0 || skipped > 0 || failed > 0 {
		log.Printf("fee generation: period %s created=%d skipped=%d failed=%d", period, created, skipped, failed)
	}
	return nil
}

package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"classhub/server/internal/feeschedule"
	"classhub/server/internal/model"
)

// memoryBillingStore mimics the fee_entries (student_id, period) uniqueness
// of the real store so the job's idempotence can be exercised in memory.
type memoryBillingStore struct {
	mu        sync.Mutex
	students  []model.BillingStudent
	entries   map[string]model.FeeEntry
	listErr   error
	insertErr map[string]error
}

func newMemoryBillingStore(students ...model.BillingStudent) *memoryBillingStore {
	return &memoryBillingStore{
		students:  students,
		entries:   make(map[string]model.FeeEntry),
		insertErr: make(map[string]error),
	}
}

func (m *memoryBillingStore) ListBillingStudents(ctx context.Context) ([]model.BillingStudent, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]model.BillingStudent{}, m.students...), nil
}

func (m *memoryBillingStore) InsertFeeIfAbsent(ctx context.Context, entry model.FeeEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertErr[entry.StudentID]; err != nil {
		return false, err
	}
	key := entry.StudentID + "|" + entry.Period
	if _, ok := m.entries[key]; ok {
		return false, nil
	}
	m.entries[key] = entry
	return true, nil
}

func (m *memoryBillingStore) entryFor(studentID, period string) (model.FeeEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[studentID+"|"+period]
	return entry, ok
}

func (m *memoryBillingStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var march = time.Date(2025, time.March, 15, 8, 0, 0, 0, time.UTC)

func newTestGenerator(t *testing.T, store BillingStore) *FeeGenerator {
	t.Helper()
	schedule, err := feeschedule.New("", "")
	if err != nil {
		t.Fatalf("schedule error: %v", err)
	}
	gen := NewFeeGenerator(store, schedule)
	gen.now = fixedClock(march)
	return gen
}

func TestPeriodKey(t *testing.T) {
	if got := PeriodKey(march); got != "March 2025" {
		t.Fatalf("expected period 'March 2025', got %q", got)
	}
	jan := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	if got := PeriodKey(jan); got != "January 2025" {
		t.Fatalf("expected period 'January 2025', got %q", got)
	}
}

func TestRunBillsBaseFee(t *testing.T) {
	store := newMemoryBillingStore(model.BillingStudent{ID: "s1", Standard: "5"})
	gen := newTestGenerator(t, store)

	if err := gen.Run(context.Background()); err != nil {
		t.Fatalf("run error: %v", err)
	}
	entry, ok := store.entryFor("s1", "March 2025")
	if !ok {
		t.Fatalf("expected an entry for s1")
	}
	if entry.Amount != 1800 {
		t.Fatalf("expected amount 1800, got %d", entry.Amount)
	}
	if entry.Paid {
		t.Fatalf("new entries must start unpaid")
	}
}

func TestRunAddsTransportSurcharge(t *testing.T) {
	store := newMemoryBillingStore(model.BillingStudent{
		ID: "s1", Standard: "5", TransportEnabled: true, PickupPoint: "Pickup2",
	})
	gen := newTestGenerator(t, store)

	if err := gen.Run(context.Background()); err != nil {
		t.Fatalf("run error: %v", err)
	}
	entry, _ := store.entryFor("s1", "March 2025")
	if entry.Amount != 1800+1000 {
		t.Fatalf("expected amount 2800, got %d", entry.Amount)
	}
}

func TestRunUnmappedPickupPointBillsBaseOnly(t *testing.T) {
	store := newMemoryBillingStore(model.BillingStudent{
		ID: "s1", Standard: "5", TransportEnabled: true, PickupPoint: "Nowhere",
	})
	gen := newTestGenerator(t, store)

	if err := gen.Run(context.Background()); err != nil {
		t.Fatalf("run error: %v", err)
	}
	entry, ok := store.entryFor("s1", "March 2025")
	if !ok {
		t.Fatalf("unmapped pickup point must not skip the student")
	}
	if entry.Amount != 1800 {
		t.Fatalf("expected base fee only, got %d", entry.Amount)
	}
}

func TestRunSkipsUnmappedStandard(t *testing.T) {
	store := newMemoryBillingStore(
		model.BillingStudent{ID: "s1", Standard: "13"},
		model.BillingStudent{ID: "s2", Standard: "5"},
	)
	gen := newTestGenerator(t, store)

	if err := gen.Run(context.Background()); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if _, ok := store.entryFor("s1", "March 2025"); ok {
		t.Fatalf("unmapped standard must not be billed")
	}
	if _, ok := store.entryFor("s2", "March 2025"); !ok {
		t.Fatalf("run must continue past skipped students")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := newMemoryBillingStore(
		model.BillingStudent{ID: "s1", Standard: "5"},
		model.BillingStudent{ID: "s2", Standard: "8", TransportEnabled: true, PickupPoint: "Pickup1"},
	)
	gen := newTestGenerator(t, store)

	if err := gen.Run(context.Background()); err != nil {
		t.Fatalf("first run error: %v", err)
	}
	first, _ := store.entryFor("s2", "March 2025")

	if err := gen.Run(context.Background()); err != nil {
		t.Fatalf("second run error: %v", err)
	}
	if store.count() != 2 {
		t.Fatalf("expected 2 entries after rerun, got %d", store.count())
	}
	second, _ := store.entryFor("s2", "March 2025")
	if first.ID != second.ID || first.Amount != second.Amount {
		t.Fatalf("rerun must not replace existing entries")
	}
}

func TestRunNewPeriodBillsAgain(t *testing.T) {
	store := newMemoryBillingStore(model.BillingStudent{ID: "s1", Standard: "5"})
	gen := newTestGenerator(t, store)

	if err := gen.Run(context.Background()); err != nil {
		t.Fatalf("march run error: %v", err)
	}
	gen.now = fixedClock(march.AddDate(0, 1, 0))
	if err := gen.Run(context.Background()); err != nil {
		t.Fatalf("april run error: %v", err)
	}
	if store.count() != 2 {
		t.Fatalf("expected one entry per period, got %d", store.count())
	}
	if _, ok := store.entryFor("s1", "April 2025"); !ok {
		t.Fatalf("expected an April entry")
	}
}

func TestRunConcurrentInvocations(t *testing.T) {
	var students []model.BillingStudent
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
		students = append(students, model.BillingStudent{ID: id, Standard: "5"})
	}
	store := newMemoryBillingStore(students...)
	gen := newTestGenerator(t, store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = gen.Run(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("run %d error: %v", i, err)
		}
	}
	if store.count() != len(students) {
		t.Fatalf("expected exactly one entry per student, got %d", store.count())
	}
}

func TestRunContinuesPastInsertFailure(t *testing.T) {
	store := newMemoryBillingStore(
		model.BillingStudent{ID: "s1", Standard: "5"},
		model.BillingStudent{ID: "s2", Standard: "5"},
	)
	store.insertErr["s1"] = errors.New("connection reset")
	gen := newTestGenerator(t, store)

	if err := gen.Run(context.Background()); err != nil {
		t.Fatalf("a single student failure must not abort the run: %v", err)
	}
	if _, ok := store.entryFor("s2", "March 2025"); !ok {
		t.Fatalf("expected s2 to be billed despite s1 failing")
	}
}

func TestRunEmptyRoster(t *testing.T) {
	store := newMemoryBillingStore()
	gen := newTestGenerator(t, store)
	if err := gen.Run(context.Background()); err != nil {
		t.Fatalf("empty roster must be a no-op, got %v", err)
	}
}

func TestRunRosterFailureAbortsRun(t *testing.T) {
	store := newMemoryBillingStore(model.BillingStudent{ID: "s1", Standard: "5"})
	store.listErr = errors.New("db down")
	gen := newTestGenerator(t, store)

	if err := gen.Run(context.Background()); err == nil {
		t.Fatalf("expected roster failure to fail the run")
	}
	if store.count() != 0 {
		t.Fatalf("no writes may happen when the roster read fails")
	}
}

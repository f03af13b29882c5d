package feed

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"safemap/models"
)

// fakeStore is an in-memory report collection with the same ordering
// contract as the real store.
type fakeStore struct {
	mu      sync.Mutex
	reports []models.Report
	nextSeq int64
	failing bool
}

func (f *fakeStore) add(id, description string, createdAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSeq++
	f.reports = append(f.reports, models.Report{
		Seq:         f.nextSeq,
		ID:          id,
		Type:        models.ReportSafe,
		Description: description,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	})
}

func (f *fakeStore) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.reports {
		if r.ID == id {
			f.reports = append(f.reports[:i], f.reports[i+1:]...)
			return
		}
	}
}

func (f *fakeStore) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

func (f *fakeStore) ListAllReports(ctx context.Context) ([]models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("store unreachable")
	}
	out := make([]models.Report, len(f.reports))
	copy(out, f.reports)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Seq > out[j].Seq
	})
	return out, nil
}

func (f *fakeStore) ChangeToken(ctx context.Context) (int, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return 0, 0, errors.New("store unreachable")
	}
	var maxSeq int64
	for _, r := range f.reports {
		if r.Seq > maxSeq {
			maxSeq = r.Seq
		}
	}
	return len(f.reports), maxSeq, nil
}

func recvSnapshot(t *testing.T, ch <-chan models.Snapshot, timeout time.Duration) models.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatal("snapshot channel closed unexpectedly")
		}
		return snap
	case <-time.After(timeout):
		t.Fatal("timed out waiting for snapshot")
	}
	return models.Snapshot{}
}

func TestSubscribeDeliversCurrentSnapshot(t *testing.T) {
	store := &fakeStore{}
	store.add("r-1", "well lit", time.Now())

	s := New(store, 5*time.Millisecond)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	ch, cancel := s.Subscribe()
	defer cancel()

	snap := recvSnapshot(t, ch, time.Second)
	if snap.Count != 1 || snap.Reports[0].ID != "r-1" {
		t.Errorf("initial snapshot = %+v, want the existing report", snap)
	}
}

func TestChangeYieldsExactlyOneDelivery(t *testing.T) {
	store := &fakeStore{}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store.add("r-1", "well lit", base)

	s := New(store, 5*time.Millisecond)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	ch, cancel := s.Subscribe()
	defer cancel()
	recvSnapshot(t, ch, time.Second) // initial

	store.add("r-2", "dark alley", base.Add(time.Hour))

	snap := recvSnapshot(t, ch, time.Second)
	if snap.Count != 2 {
		t.Fatalf("snapshot count = %d, want 2", snap.Count)
	}
	if snap.Reports[0].ID != "r-2" {
		t.Errorf("newest report first: got %q, want r-2", snap.Reports[0].ID)
	}
	for i := 1; i < len(snap.Reports); i++ {
		if snap.Reports[i].CreatedAt.After(snap.Reports[i-1].CreatedAt) {
			t.Errorf("snapshot out of order at %d", i)
		}
	}

	// No further deliveries without further changes.
	select {
	case extra := <-ch:
		t.Errorf("unexpected extra delivery: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDeleteYieldsDelivery(t *testing.T) {
	store := &fakeStore{}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store.add("r-1", "well lit", base)
	store.add("r-2", "dark alley", base.Add(time.Hour))

	s := New(store, 5*time.Millisecond)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	ch, cancel := s.Subscribe()
	defer cancel()
	recvSnapshot(t, ch, time.Second) // initial

	store.remove("r-1")

	snap := recvSnapshot(t, ch, time.Second)
	if snap.Count != 1 || snap.Reports[0].ID != "r-2" {
		t.Errorf("snapshot after delete = %+v, want only r-2", snap)
	}
}

func TestCancelStopsDeliveries(t *testing.T) {
	store := &fakeStore{}
	store.add("r-1", "well lit", time.Now())

	s := New(store, 5*time.Millisecond)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	ch, cancel := s.Subscribe()
	recvSnapshot(t, ch, time.Second)

	cancel()
	// Cancel must be safe to call twice.
	cancel()

	store.add("r-2", "dark alley", time.Now())
	time.Sleep(30 * time.Millisecond)

	// The channel is closed; no snapshot may arrive on it.
	if snap, ok := <-ch; ok {
		t.Errorf("delivery after cancel: %+v", snap)
	}
}

// racingStore commits an extra report immediately after a list read,
// modeling a writer that lands between the synchronizer's queries.
type racingStore struct {
	*fakeStore

	mu     sync.Mutex
	armed  bool
	commit func()
}

func (r *racingStore) arm() {
	r.mu.Lock()
	r.armed = true
	r.mu.Unlock()
}

func (r *racingStore) ListAllReports(ctx context.Context) ([]models.Report, error) {
	reports, err := r.fakeStore.ListAllReports(ctx)
	r.mu.Lock()
	fire := r.armed
	r.armed = false
	r.mu.Unlock()
	if fire {
		r.commit()
	}
	return reports, err
}

func TestInsertDuringRefreshIsDeliveredNextTick(t *testing.T) {
	store := &fakeStore{}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store.add("r-1", "well lit", base)

	racing := &racingStore{fakeStore: store}
	racing.commit = func() {
		store.add("r-3", "broken streetlight", base.Add(2*time.Hour))
	}

	s := New(racing, 5*time.Millisecond)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	ch, cancel := s.Subscribe()
	defer cancel()
	recvSnapshot(t, ch, time.Second) // initial

	// The next list read (triggered by r-2) races with r-3's commit: r-3
	// lands after the rows are read, so it is absent from that snapshot.
	racing.arm()
	store.add("r-2", "dark alley", base.Add(time.Hour))

	snap := recvSnapshot(t, ch, time.Second)
	if snap.Count != 2 || snap.Reports[0].ID != "r-2" {
		t.Fatalf("snapshot during race = %+v, want r-2 and r-1", snap)
	}

	// The racing insert must not be lost: the following poll sees it and
	// delivers a snapshot containing it.
	snap = recvSnapshot(t, ch, time.Second)
	if snap.Count != 3 || snap.Reports[0].ID != "r-3" {
		t.Errorf("snapshot after race = %+v, want r-3 included", snap)
	}
}

func TestErrorRetainsLastSnapshot(t *testing.T) {
	store := &fakeStore{}
	store.add("r-1", "well lit", time.Now())

	var mu sync.Mutex
	var errCount int

	s := New(store, 5*time.Millisecond, WithOnError(func(err error) {
		mu.Lock()
		errCount++
		mu.Unlock()
	}))
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	ch, cancel := s.Subscribe()
	defer cancel()
	recvSnapshot(t, ch, time.Second)

	store.setFailing(true)
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	sawError := errCount > 0
	mu.Unlock()
	if !sawError {
		t.Error("expected the error hook to fire while the store is down")
	}

	// Stale-but-available: the last good snapshot survives the outage.
	snap, ok := s.Current()
	if !ok || snap.Count != 1 || snap.Reports[0].ID != "r-1" {
		t.Errorf("Current() = (%+v, %v), want retained snapshot with r-1", snap, ok)
	}
}

func TestOnSnapshotHookFiresOncePerChange(t *testing.T) {
	store := &fakeStore{}
	store.add("r-1", "well lit", time.Now())

	var mu sync.Mutex
	var calls []int

	s := New(store, 5*time.Millisecond, WithOnSnapshot(func(snap models.Snapshot) {
		mu.Lock()
		calls = append(calls, snap.Count)
		mu.Unlock()
	}))
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	store.add("r-2", "dark alley", time.Now())

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(calls)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("hook fired %d times, want 2", n)
		}
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 2 {
		t.Errorf("hook fired %d times for 2 states, want 2", len(calls))
	}
	if calls[len(calls)-1] != 2 {
		t.Errorf("last hook snapshot count = %d, want 2", calls[len(calls)-1])
	}
}

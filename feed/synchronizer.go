// Package feed keeps a derived, ordered snapshot of all reports
// continuously fresh and pushes it to subscribers whenever the backing
// collection changes.
package feed

import (
	"context"
	"sync"
	"time"

	"safemap/models"

	"github.com/apex/log"
)

// Store is the slice of the report store the synchronizer needs.
type Store interface {
	ListAllReports(ctx context.Context) ([]models.Report, error)
	ChangeToken(ctx context.Context) (int, int64, error)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithOnSnapshot installs a hook invoked exactly once per delivered
// snapshot, before the per-subscriber channels are served. The marker
// projection and the websocket hub are wired here.
func WithOnSnapshot(fn func(models.Snapshot)) Option {
	return func(s *Synchronizer) { s.onSnapshot = fn }
}

// WithOnError installs a hook for non-fatal subscription errors. The last
// good snapshot is retained when the hook fires.
func WithOnError(fn func(error)) Option {
	return func(s *Synchronizer) { s.onError = fn }
}

// Synchronizer owns the in-memory report snapshot. It is the only writer;
// the snapshot is only ever replaced wholesale, never mutated in place.
type Synchronizer struct {
	store    Store
	interval time.Duration

	onSnapshot func(models.Snapshot)
	onError    func(error)

	mu        sync.RWMutex
	subs      map[int]chan models.Snapshot
	nextSubID int
	last      models.Snapshot
	haveLast  bool
	lastCount int
	lastSeq   int64

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a synchronizer polling the store at the given interval.
func New(store Store, interval time.Duration, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:    store,
		interval: interval,
		subs:     make(map[int]chan models.Snapshot),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start primes the snapshot and launches the polling loop.
func (s *Synchronizer) Start() error {
	if err := s.refresh(context.Background()); err != nil {
		// Degrade rather than fail startup: the first successful poll
		// will deliver the initial snapshot.
		log.Warnf("Initial snapshot load failed: %v", err)
		s.reportError(err)
	}

	s.wg.Add(1)
	go s.pollLoop()

	log.Info("Feed synchronizer started")
	return nil
}

// Stop tears down the polling loop. Subscriber channels are closed so no
// deliveries happen after Stop returns.
func (s *Synchronizer) Stop() {
	close(s.stopChan)
	s.wg.Wait()

	s.mu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	log.Info("Feed synchronizer stopped")
}

// Subscribe registers a snapshot stream. The current snapshot, when one
// exists, is delivered immediately; afterwards each change to the backing
// collection yields exactly one delivery. The returned cancel function
// releases the subscription on all exit paths; after it returns no
// further deliveries are made.
func (s *Synchronizer) Subscribe() (<-chan models.Snapshot, func()) {
	ch := make(chan models.Snapshot, 16)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	if s.haveLast {
		ch <- s.last
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

// Current returns the last delivered snapshot, if any.
func (s *Synchronizer) Current() (models.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.haveLast
}

func (s *Synchronizer) pollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if err := s.poll(context.Background()); err != nil {
				log.Errorf("Feed poll failed: %v", err)
				s.reportError(err)
			}
		}
	}
}

// poll checks the store's change token and refreshes the snapshot when it
// moved. Notification order across concurrent writers is whatever the
// store serves; each delivered snapshot is internally consistent.
func (s *Synchronizer) poll(ctx context.Context) error {
	count, maxSeq, err := s.store.ChangeToken(ctx)
	if err != nil {
		return err
	}

	s.mu.RLock()
	unchanged := s.haveLast && count == s.lastCount && maxSeq == s.lastSeq
	s.mu.RUnlock()
	if unchanged {
		return nil
	}

	return s.refresh(ctx)
}

// refresh loads the full ordered snapshot and delivers it. On error the
// previous snapshot stays in place: stale data beats no data.
func (s *Synchronizer) refresh(ctx context.Context) error {
	reports, err := s.store.ListAllReports(ctx)
	if err != nil {
		return err
	}

	// Derive the change token from the listed rows themselves. The stored
	// watermark must never run ahead of the delivered snapshot: a row
	// committed after this read leaves the token behind, so the next poll
	// sees the gap and refreshes again.
	count := len(reports)
	var maxSeq int64
	for _, r := range reports {
		if r.Seq > maxSeq {
			maxSeq = r.Seq
		}
	}

	snapshot := models.Snapshot{
		Reports: reports,
		Count:   len(reports),
		TakenAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.last = snapshot
	s.haveLast = true
	s.lastCount = count
	s.lastSeq = maxSeq

	if s.onSnapshot != nil {
		s.onSnapshot(snapshot)
	}
	for _, ch := range s.subs {
		select {
		case ch <- snapshot:
		default:
			// Slow subscriber; drop the oldest pending snapshot so the
			// freshest one always lands.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
	s.mu.Unlock()

	return nil
}

func (s *Synchronizer) reportError(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

package geoloc

import (
	"context"
	"sync"
	"time"
)

// DeviceFeed bridges position fixes posted by the client device to
// single-shot CurrentPosition requests. A request either observes a fix
// that arrives while it waits or fails when its context expires.
type DeviceFeed struct {
	mu      sync.Mutex
	waiters map[int]chan Position
	nextID  int
}

// NewDeviceFeed creates an empty feed.
func NewDeviceFeed() *DeviceFeed {
	return &DeviceFeed{waiters: make(map[int]chan Position)}
}

// Publish delivers a new fix to every pending position request.
func (f *DeviceFeed) Publish(lat, lng, accuracyMeters float64) {
	pos := Position{
		Latitude:       lat,
		Longitude:      lng,
		AccuracyMeters: accuracyMeters,
		FixedAt:        time.Now().UTC(),
	}

	f.mu.Lock()
	for id, ch := range f.waiters {
		ch <- pos
		delete(f.waiters, id)
	}
	f.mu.Unlock()
}

// CurrentPosition waits for the next published fix.
func (f *DeviceFeed) CurrentPosition(ctx context.Context) (Position, error) {
	ch := make(chan Position, 1)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.waiters[id] = ch
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.waiters, id)
		f.mu.Unlock()
	}()

	select {
	case pos := <-ch:
		return pos, nil
	case <-ctx.Done():
		return Position{}, ctx.Err()
	}
}

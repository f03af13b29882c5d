// Package geoloc wraps single-shot device position requests with the
// bounded timeouts and failure policies of the two locate flows: a
// user-initiated lookup surfaces categorized errors, a passive auto
// locate on load fails soft.
package geoloc

import (
	"context"
	"errors"
	"time"

	"github.com/apex/log"
)

// ErrorCode categorizes a failed position request.
type ErrorCode int

const (
	PermissionDenied ErrorCode = iota + 1
	PositionUnavailable
	Timeout
)

// PositionError is a categorized geolocation failure.
type PositionError struct {
	Code    ErrorCode
	Message string
}

func (e *PositionError) Error() string {
	return e.Message
}

// Code extracts the error category; ok is false when err is not a
// position error.
func Code(err error) (ErrorCode, bool) {
	var pe *PositionError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

// Position is a single device position fix.
type Position struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	FixedAt        time.Time
}

// Provider is the device geolocation collaborator.
type Provider interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// Resolver issues bounded single-shot position requests.
type Resolver struct {
	provider       Provider
	locateTimeout  time.Duration
	passiveTimeout time.Duration
}

// NewResolver builds a resolver. Zero timeouts fall back to the observed
// defaults: 10s user-initiated, 5s passive.
func NewResolver(provider Provider, locateTimeout, passiveTimeout time.Duration) *Resolver {
	if locateTimeout <= 0 {
		locateTimeout = 10 * time.Second
	}
	if passiveTimeout <= 0 {
		passiveTimeout = 5 * time.Second
	}
	return &Resolver{
		provider:       provider,
		locateTimeout:  locateTimeout,
		passiveTimeout: passiveTimeout,
	}
}

// Locate performs a user-initiated position request. Failures, including
// the deadline elapsing, surface as categorized errors.
func (r *Resolver) Locate(ctx context.Context) (Position, error) {
	pos, err := r.request(ctx, r.locateTimeout)
	if err != nil {
		return Position{}, err
	}
	return pos, nil
}

// AutoLocate performs the passive on-load position request. It fails
// soft: on any error the zero position and ok=false are returned and
// nothing is surfaced to the user.
func (r *Resolver) AutoLocate(ctx context.Context) (Position, bool) {
	pos, err := r.request(ctx, r.passiveTimeout)
	if err != nil {
		log.Debugf("Auto-locate failed softly: %v", err)
		return Position{}, false
	}
	return pos, true
}

func (r *Resolver) request(ctx context.Context, timeout time.Duration) (Position, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		pos Position
		err error
	}
	done := make(chan result, 1)
	go func() {
		pos, err := r.provider.CurrentPosition(ctx)
		done <- result{pos, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if _, ok := Code(res.err); ok {
				return Position{}, res.err
			}
			if errors.Is(res.err, context.DeadlineExceeded) {
				return Position{}, &PositionError{Code: Timeout, Message: "position request timed out"}
			}
			return Position{}, &PositionError{Code: PositionUnavailable, Message: res.err.Error()}
		}
		return res.pos, nil
	case <-ctx.Done():
		return Position{}, &PositionError{Code: Timeout, Message: "position request timed out"}
	}
}

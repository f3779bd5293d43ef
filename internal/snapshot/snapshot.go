// Package snapshot holds the most recent successful labeler ResultSet and
// regenerates it on a fixed interval.
package snapshot

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"labelerdir/internal/labelers"
)

// DefaultInterval is how long a generated ResultSet stays current.
const DefaultInterval = 24 * time.Hour

// ErrBusy is returned by Refresh while another regeneration is running.
var ErrBusy = errors.New("regeneration already in progress")

// Runner produces a fresh ResultSet.
type Runner interface {
	Run(ctx context.Context) (*labelers.ResultSet, error)
}

// Status describes the store for health reporting.
type Status struct {
	GeneratedAt time.Time `json:"generated_at"`
	LastAttempt time.Time `json:"last_attempt"`
	NextAttempt time.Time `json:"next_attempt"`
	Count       int       `json:"count"`
	Failed      int       `json:"failed"`
	LastError   string    `json:"last_error,omitempty"`
	Busy        bool      `json:"busy"`
}

// Store keeps the last good ResultSet. A failed regeneration leaves the
// previous ResultSet in place.
type Store struct {
	runner   Runner
	interval time.Duration
	logger   *log.Logger

	mu          sync.RWMutex
	current     *labelers.ResultSet
	lastErr     error
	lastAttempt time.Time
	nextAttempt time.Time
	busy        bool
}

func New(runner Runner, interval time.Duration, logger *log.Logger) *Store {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// Current returns the last good ResultSet, or nil before the first success.
func (s *Store) Current() *labelers.ResultSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		LastAttempt: s.lastAttempt,
		NextAttempt: s.nextAttempt,
		Busy:        s.busy,
	}
	if s.current != nil {
		st.GeneratedAt = s.current.GeneratedAt
		st.Count = len(s.current.Labelers)
		st.Failed = len(s.current.Failed)
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Refresh runs the pipeline once and publishes the result on success.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.busy = true
	s.lastAttempt = time.Now()
	s.mu.Unlock()

	result, err := s.runner.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.lastErr = err
	if err != nil {
		s.logger.Printf("[SNAPSHOT] regeneration failed, keeping previous result: %v", err)
		return err
	}
	s.current = result
	s.logger.Printf("[SNAPSHOT] published %d labelers", len(result.Labelers))
	return nil
}

// Start regenerates immediately and then every interval until ctx is done.
func (s *Store) Start(ctx context.Context) error {
	s.logger.Printf("[SNAPSHOT] started: interval=%v", s.interval)

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Println("[SNAPSHOT] stopping (context cancelled)")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Store) tick(ctx context.Context) {
	if err := s.Refresh(ctx); errors.Is(err, ErrBusy) {
		s.logger.Println("[SNAPSHOT] skipping scheduled regeneration: previous run still in progress")
	}

	s.mu.Lock()
	s.nextAttempt = time.Now().Add(s.interval)
	s.mu.Unlock()
}

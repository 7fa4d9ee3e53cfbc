package game

import (
	"context"
	"log/slog"
	"time"

	"starpets/internal/metrics"
)

type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
	rand  RandSource
}

type Option func(*Service)

// WithClock replaces time.Now. Times are normalized to UTC.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRand replaces the source used for fusion and mine rolls.
func WithRand(r RandSource) Option {
	return func(s *Service) {
		if r != nil {
			s.rand = r
		}
	}
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store: store,
		log:   logger,
		now:   time.Now,
		rand:  defaultRand(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// run executes fn as one unit of work for userID. A fresh Unit is handed to every
// attempt the store makes, so only the committed attempt's events are recorded.
func (s *Service) run(ctx context.Context, userID string, fn func(u *Unit) error) error {
	var committed *Unit
	err := s.store.WithUser(ctx, userID, func(tx Tx) error {
		u := &Unit{tx: tx, userID: userID, now: s.clock()}
		if err := fn(u); err != nil {
			return err
		}
		committed = u
		return nil
	})
	if err != nil {
		return err
	}
	if committed != nil {
		for _, ev := range committed.events {
			metrics.LedgerMutations.WithLabelValues(ev.kind, ev.source).Inc()
		}
	}
	return nil
}

// Package memory is a process-local game.Store. Each user's state is an immutable
// snapshot; a unit of work edits a private copy under the user's lock and swaps it in
// only when the unit succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"starpets/internal/game"

	"github.com/shopspring/decimal"
)

type Store struct {
	mu             sync.RWMutex
	users          map[string]*user
	creatureOwner  map[string]string
	challengeOwner map[string]string
	now            func() time.Time
}

type user struct {
	lock sync.Mutex
	data *userData
}

type userData struct {
	wallet       game.Wallet
	transactions []game.Transaction
	energy       []game.EnergyLedgerEntry
	creatures    []game.Creature
	sessions     []game.ProductionSession
	fusions      []game.FusionAttempt
	challenges   []game.MineChallenge
	achievements map[string]time.Time
	idempotency  map[string]string
}

var (
	_ game.Store = (*Store)(nil)
	_ game.Tx    = (*tx)(nil)
)

func New() *Store {
	return &Store{
		users:          make(map[string]*user),
		creatureOwner:  make(map[string]string),
		challengeOwner: make(map[string]string),
		now:            time.Now,
	}
}

func (s *Store) user(userID string) *user {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = &user{}
		s.users[userID] = u
	}
	return u
}

func (s *Store) WithUser(ctx context.Context, userID string, fn func(tx game.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u := s.user(userID)
	u.lock.Lock()
	defer u.lock.Unlock()

	s.mu.RLock()
	current := u.data
	s.mu.RUnlock()

	var work *userData
	if current == nil {
		work = &userData{
			wallet: game.Wallet{
				UserID:           userID,
				GemBalance:       decimal.Zero,
				ShellBalance:     decimal.Zero,
				MineTickets:      decimal.Zero,
				Energy:           game.StarterEnergy,
				LastEnergyUpdate: s.now().UTC(),
			},
			achievements: make(map[string]time.Time),
			idempotency:  make(map[string]string),
		}
	} else {
		work = current.clone()
	}

	if err := fn(&tx{data: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if current != nil {
		for _, c := range current.creatures {
			delete(s.creatureOwner, c.ID)
		}
	}
	for _, c := range work.creatures {
		s.creatureOwner[c.ID] = userID
	}
	for _, c := range work.challenges {
		s.challengeOwner[c.ID] = userID
	}
	u.data = work
	return nil
}

func (s *Store) CreatureOwner(ctx context.Context, creatureID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.creatureOwner[creatureID]
	if !ok {
		return "", fmt.Errorf("%w %s", game.ErrCreatureNotFound, creatureID)
	}
	return owner, nil
}

func (s *Store) ChallengeOwner(ctx context.Context, challengeID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.challengeOwner[challengeID]
	if !ok {
		return "", fmt.Errorf("%w %s", game.ErrChallengeNotFound, challengeID)
	}
	return owner, nil
}

func (s *Store) UsersBelowEnergy(ctx context.Context, energy int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, u := range s.users {
		if u.data != nil && u.data.wallet.Energy < energy {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ExpiredChallenges(ctx context.Context, now time.Time, limit int) ([]game.MineChallenge, error) {
	s.mu.RLock()
	var out []game.MineChallenge
	for _, u := range s.users {
		if u.data == nil {
			continue
		}
		for _, c := range u.data.challenges {
			if !c.Claimed && !c.EndTime.After(now) {
				out = append(out, c)
			}
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *userData) clone() *userData {
	c := &userData{
		wallet:       d.wallet,
		transactions: append([]game.Transaction(nil), d.transactions...),
		energy:       append([]game.EnergyLedgerEntry(nil), d.energy...),
		creatures:    append([]game.Creature(nil), d.creatures...),
		sessions:     append([]game.ProductionSession(nil), d.sessions...),
		fusions:      append([]game.FusionAttempt(nil), d.fusions...),
		challenges:   append([]game.MineChallenge(nil), d.challenges...),
		achievements: make(map[string]time.Time, len(d.achievements)),
		idempotency:  make(map[string]string, len(d.idempotency)),
	}
	for k, v := range d.achievements {
		c.achievements[k] = v
	}
	for k, v := range d.idempotency {
		c.idempotency[k] = v
	}
	return c
}

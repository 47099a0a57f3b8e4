// Package memory is a hermetic storage.Store used by tests. A single mutex
// serializes operations; WithTx snapshots the state and restores it when the
// callback fails, giving the same all-or-nothing semantics as the postgres
// store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/likebank/likebank/internal/domain"
	"github.com/likebank/likebank/internal/storage"
)

type state struct {
	seq     int64
	users   map[int64]*domain.User
	orders  map[int64]*domain.Order
	tasks   map[int64]*domain.Task
	entries []*domain.CoinEntry
	refs    map[string]bool // reason|ref uniqueness
}

func newState() *state {
	return &state{
		users:  make(map[int64]*domain.User),
		orders: make(map[int64]*domain.Order),
		tasks:  make(map[int64]*domain.Task),
		refs:   make(map[string]bool),
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:     s.seq,
		users:   make(map[int64]*domain.User, len(s.users)),
		orders:  make(map[int64]*domain.Order, len(s.orders)),
		tasks:   make(map[int64]*domain.Task, len(s.tasks)),
		entries: make([]*domain.CoinEntry, len(s.entries)),
		refs:    make(map[string]bool, len(s.refs)),
	}
	for id, u := range s.users {
		cu := *u
		c.users[id] = &cu
	}
	for id, o := range s.orders {
		co := *o
		c.orders[id] = &co
	}
	for id, t := range s.tasks {
		ct := copyTask(t)
		c.tasks[id] = ct
	}
	for i, e := range s.entries {
		ce := *e
		c.entries[i] = &ce
	}
	for k := range s.refs {
		c.refs[k] = true
	}
	return c
}

func copyTask(t *domain.Task) *domain.Task {
	ct := *t
	ct.AssignedUserID = copyPtr(t.AssignedUserID)
	ct.AssignedAt = copyPtr(t.AssignedAt)
	ct.ExpiresAt = copyPtr(t.ExpiresAt)
	ct.CompletedAt = copyPtr(t.CompletedAt)
	ct.ValidationRef = copyPtr(t.ValidationRef)
	ct.ReplacedByTaskID = copyPtr(t.ReplacedByTaskID)
	return &ct
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// Store implements storage.Store in memory.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

var _ storage.Store = (*Store)(nil)

// SeedUser inserts a user row directly; tests stand in for the external
// registration system this way.
func (m *Store) SeedUser(handle string, balance decimal.Decimal) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.st.nextID()
	m.st.users[id] = &domain.User{
		ID:              id,
		InstagramHandle: handle,
		CoinBalance:     balance,
		CreatedAt:       time.Unix(0, 0),
	}
	return id
}

// BanUser flips the banned flag; test helper.
func (m *Store) BanUser(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.st.users[id]; ok {
		u.Banned = true
	}
}

// AllUsers returns a copy of every user row; used by invariant checks.
func (m *Store) AllUsers() []domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.st.users))
	for _, u := range m.st.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllOrders returns a copy of every order row; used by invariant checks.
func (m *Store) AllOrders() []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.st.orders))
	for _, o := range m.st.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllTasks returns a copy of every task row; used by invariant checks.
func (m *Store) AllTasks() []domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Task, 0, len(m.st.tasks))
	for _, t := range m.st.tasks {
		out = append(out, *copyTask(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllEntries returns a copy of the full ledger; used by invariant checks.
func (m *Store) AllEntries() []domain.CoinEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CoinEntry, len(m.st.entries))
	for i, e := range m.st.entries {
		out[i] = *e
	}
	return out
}

func (m *Store) WithTx(ctx context.Context, fn func(storage.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.st.clone()
	if err := fn(&tx{st: m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

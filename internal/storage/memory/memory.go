// Package memory is an in-process Store used by tests and the memory backend.
// Data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/storage"
)

type Store struct {
	mu         sync.Mutex
	nextID     int64
	users      map[int64]core.User
	emails     map[string]int64
	categories []core.Category
	expenses   map[int64]core.Expense
	now        func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New returns a store seeded with the default category templates.
func New() *Store {
	s := &Store{
		users:    make(map[int64]core.User),
		emails:   make(map[string]int64),
		expenses: make(map[int64]core.Expense),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, c := range core.DefaultCategories() {
		c.ID = s.id()
		c.CreatedAt = s.now()
		s.categories = append(s.categories, c)
	}
	return s
}

// id must be called with mu held or during construction.
func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateExpense(_ context.Context, ownerID int64, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[ownerID]; !ok {
		return core.Expense{}, fmt.Errorf("create expense: unknown owner %d", ownerID)
	}
	e.ID = s.id()
	e.OwnerID = ownerID
	e.CreatedAt = s.now()
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, ownerID int64, f core.ExpenseFilter) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if e.OwnerID == ownerID && f.Match(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, id, ownerID int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.OwnerID != ownerID {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, id, ownerID int64, p core.ExpensePatch) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.OwnerID != ownerID {
		return core.Expense{}, core.ErrNotFound
	}
	e = e.Apply(p)
	s.expenses[id] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, id, ownerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.OwnerID != ownerID {
		return false, nil
	}
	delete(s.expenses, id)
	return true, nil
}

func sortedByName(in []core.Category) []core.Category {
	sort.SliceStable(in, func(i, j int) bool { return in[i].Name < in[j].Name })
	return in
}

func (s *Store) ownedBy(ownerID int64) []core.Category {
	var out []core.Category
	for _, c := range s.categories {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) ListCategories(_ context.Context, ownerID int64) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	own := s.ownedBy(ownerID)
	if len(own) == 0 {
		own = s.ownedBy(0)
	}
	return sortedByName(append([]core.Category{}, own...)), nil
}

func (s *Store) ListTemplates(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedByName(append([]core.Category{}, s.ownedBy(0)...)), nil
}

// insertCategory must be called with mu held.
func (s *Store) insertCategory(ownerID int64, c core.Category) (core.Category, error) {
	for _, existing := range s.categories {
		if existing.OwnerID == ownerID && existing.Name == c.Name {
			return core.Category{}, fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicate)
		}
	}
	c.ID = s.id()
	c.OwnerID = ownerID
	c.CreatedAt = s.now()
	s.categories = append(s.categories, c)
	return c, nil
}

func (s *Store) CreateCategory(_ context.Context, ownerID int64, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCategory(ownerID, c.WithDefaults())
}

// cloneLocked copies templates to ownerID; on conflict nothing is kept.
func (s *Store) cloneLocked(ownerID int64) (int, error) {
	before := len(s.categories)
	templates := s.ownedBy(0)
	for _, t := range templates {
		if _, err := s.insertCategory(ownerID, core.Category{Name: t.Name, Color: t.Color, Icon: t.Icon}); err != nil {
			s.categories = s.categories[:before]
			return 0, err
		}
	}
	return len(templates), nil
}

func (s *Store) CloneDefaultsFor(_ context.Context, ownerID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneLocked(ownerID)
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := core.NormalizeEmail(u.Email)
	if _, exists := s.emails[email]; exists {
		return core.User{}, fmt.Errorf("email %s: %w", email, core.ErrDuplicate)
	}
	u.ID = s.id()
	u.Email = email
	u.CreatedAt = s.now()
	if _, err := s.cloneLocked(u.ID); err != nil {
		return core.User{}, err
	}
	s.users[u.ID] = u
	s.emails[email] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	s.mu.Lock()
	id, ok := s.emails[core.NormalizeEmail(email)]
	s.mu.Unlock()
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *Store) GetSettings(ctx context.Context, ownerID int64) (core.Settings, error) {
	u, err := s.GetUser(ctx, ownerID)
	if err != nil {
		return core.Settings{}, err
	}
	return u.Settings, nil
}

func (s *Store) UpdateSettings(_ context.Context, ownerID int64, settings core.Settings) (core.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[ownerID]
	if !ok {
		return core.Settings{}, core.ErrNotFound
	}
	u.Settings = settings
	s.users[ownerID] = u
	return settings, nil
}

// UpdateTemplate changes a template row in place. Owner copies are unaffected.
func (s *Store) UpdateTemplate(name string, c core.Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.categories {
		if existing.OwnerID == 0 && existing.Name == name {
			c.ID, c.OwnerID, c.CreatedAt = existing.ID, 0, existing.CreatedAt
			s.categories[i] = c
			return true
		}
	}
	return false
}

// Package decisions stores the Yes/Maybe/No verdicts a browsing session
// gives to animals, keyed by record id.
package decisions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type Decision string

const (
	Yes   Decision = "yes"
	Maybe Decision = "maybe"
	No    Decision = "no"
)

var ErrInvalidDecision = errors.New("decision must be one of yes, maybe, no")

// ParseDecision accepts the decision names case-insensitively, plus the
// single-letter keyboard shortcuts y/m/n.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y":
		return Yes, nil
	case "maybe", "m":
		return Maybe, nil
	case "no", "n":
		return No, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidDecision, s)
}

// Store persists decisions per session. Setting a decision for an animal
// that already has one replaces it.
type Store interface {
	Set(ctx context.Context, session uuid.UUID, animalID string, d Decision) error
	List(ctx context.Context, session uuid.UUID) (map[string]Decision, error)
	Clear(ctx context.Context, session uuid.UUID) error
}

// Buckets groups a decision map by verdict, animal ids sorted within each
type Buckets struct {
	Yes   []string `json:"yes"`
	Maybe []string `json:"maybe"`
	No    []string `json:"no"`
}

// Group sorts a decision map into buckets
func Group(m map[string]Decision) Buckets {
	b := Buckets{Yes: []string{}, Maybe: []string{}, No: []string{}}
	for id, d := range m {
		switch d {
		case Yes:
			b.Yes = append(b.Yes, id)
		case Maybe:
			b.Maybe = append(b.Maybe, id)
		case No:
			b.No = append(b.No, id)
		}
	}
	sort.Strings(b.Yes)
	sort.Strings(b.Maybe)
	sort.Strings(b.No)
	return b
}

// MemoryStore keeps decisions in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]map[string]Decision
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]map[string]Decision)}
}

func (m *MemoryStore) Set(_ context.Context, session uuid.UUID, animalID string, d Decision) error {
	if animalID == "" {
		return errors.New("animal id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[session]
	if !ok {
		s = make(map[string]Decision)
		m.sessions[session] = s
	}
	s[animalID] = d
	return nil
}

func (m *MemoryStore) List(_ context.Context, session uuid.UUID) (map[string]Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Decision, len(m.sessions[session]))
	for id, d := range m.sessions[session] {
		out[id] = d
	}
	return out, nil
}

func (m *MemoryStore) Clear(_ context.Context, session uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, session)
	return nil
}

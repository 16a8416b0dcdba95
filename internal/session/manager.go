package session

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

const shardCount = 16

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Manager is the process-wide session store. Sessions are sharded by id so
// distinct sessions never contend for the same lock. All reads hand out deep
// copies; the stored Session is never shared by reference with callers.
//
// A single session is assumed to have at most one in-flight run at a time,
// enforced by the caller.
type Manager struct {
	clock  Clock
	detect ModificationDetector
	shards [shardCount]*shard
}

// NewManager creates a Manager with the real clock and the keyword-based
// modification detector.
func NewManager() *Manager {
	return NewManagerWith(realClock{}, NewKeywordDetector())
}

// NewManagerWith creates a Manager with a custom clock and detector (for
// testing, or to swap in a learned classifier).
func NewManagerWith(clock Clock, detect ModificationDetector) *Manager {
	m := &Manager{clock: clock, detect: detect}
	for i := range m.shards {
		m.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return m
}

func (m *Manager) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return m.shards[h.Sum32()%shardCount]
}

// Create allocates a fresh session with an empty turn sequence and context.
func (m *Manager) Create() Session {
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: m.clock.Now(),
	}
	sh := m.shardFor(s.ID)
	sh.mu.Lock()
	sh.sessions[s.ID] = s
	sh.mu.Unlock()
	return cloneSession(s)
}

// GetOrCreate returns the session for id, creating one when id is empty or
// unknown. An unknown id is never an error.
func (m *Manager) GetOrCreate(id string) Session {
	if id == "" {
		return m.Create()
	}
	sh := m.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s, ok := sh.sessions[id]
	if !ok {
		s = &Session{ID: id, CreatedAt: m.clock.Now()}
		sh.sessions[id] = s
	}
	return cloneSession(s)
}

// Get returns a copy of the session for id, if it exists.
func (m *Manager) Get(id string) (Session, bool) {
	sh := m.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sessions[id]
	if !ok {
		return Session{}, false
	}
	return cloneSession(s), true
}

// AddTurn appends a completed turn and folds it into the consolidated
// context: intent fields are replaced wholesale, the accumulated constraint
// set grows by union and never shrinks.
func (m *Manager) AddTurn(id string, turn ConversationTurn) error {
	sh := m.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s, ok := sh.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: unknown session", id)
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = m.clock.Now()
	}
	turn.Intent = turn.Intent.Clone()
	turn.AudienceIDs = cloneStrings(turn.AudienceIDs)
	s.Turns = append(s.Turns, turn)

	s.Context.Intent = turn.Intent.Clone()
	s.Context.Constraints = union(s.Context.Constraints, turn.Intent.Constraints)
	return nil
}

// Reset discards the session for id and creates a replacement.
func (m *Manager) Reset(id string) Session {
	sh := m.shardFor(id)
	sh.mu.Lock()
	delete(sh.sessions, id)
	sh.mu.Unlock()
	return m.Create()
}

// ShouldModify reports whether input refines the session's previous campaign
// rather than starting a fresh analysis. Always false for a session with no
// completed turns.
func (m *Manager) ShouldModify(id, input string) bool {
	sh := m.shardFor(id)
	sh.mu.RLock()
	s, ok := sh.sessions[id]
	turns := 0
	if ok {
		turns = len(s.Turns)
	}
	sh.mu.RUnlock()
	return turns >= 1 && m.detect.IsModification(input)
}

// List returns copies of all live sessions, newest first.
func (m *Manager) List() []Session {
	var out []Session
	for _, sh := range m.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			out = append(out, cloneSession(s))
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// union appends items of extra not already in base, preserving first-seen
// order.
func union(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base))
	out := cloneStrings(base)
	for _, c := range base {
		seen[c] = struct{}{}
	}
	for _, c := range extra {
		if _, dup := seen[c]; !dup {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

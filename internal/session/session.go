package session

import (
	"sync"

	"ai-concierge/internal/llm"
)

// SystemPrompt is the instruction every conversation starts with.
const SystemPrompt = "You are a helpful customer support assistant. Answer clearly and concisely. " +
	"If a request is unclear, ask the user to clarify before answering."

// Session is one user's conversation. The first history element is always
// the system message. Callers serialize a turn with Lock/Unlock.
type Session struct {
	turn sync.Mutex

	mu      sync.RWMutex
	userID  string
	history []llm.Message
}

func newSession(userID string) *Session {
	return &Session{
		userID:  userID,
		history: []llm.Message{{Role: llm.RoleSystem, Content: SystemPrompt}},
	}
}

func (s *Session) UserID() string { return s.userID }

// Lock acquires the per-user turn lock.
func (s *Session) Lock() { s.turn.Lock() }

func (s *Session) Unlock() { s.turn.Unlock() }

func (s *Session) AppendUser(content string) {
	s.append(llm.Message{Role: llm.RoleUser, Content: content})
}

func (s *Session) AppendAssistant(content string) {
	s.append(llm.Message{Role: llm.RoleAssistant, Content: content})
}

func (s *Session) append(msg llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
}

// History returns a copy of the ordered messages, oldest first.
func (s *Session) History() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Store maps user ids to sessions for the life of the process.
// The store lock guards only lookup and insert.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for userID, creating it when absent.
// created reports whether this call created it.
func (st *Store) GetOrCreate(userID string) (s *Session, created bool) {
	st.mu.RLock()
	s, ok := st.sessions[userID]
	st.mu.RUnlock()
	if ok {
		return s, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[userID]; ok {
		return s, false
	}
	s = newSession(userID)
	st.sessions[userID] = s
	return s, true
}

// Get returns the session for userID without creating it.
func (st *Store) Get(userID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[userID]
	return s, ok
}

type Stats struct {
	Sessions int `json:"sessions"`
	Messages int `json:"messages"`
}

func (st *Store) Stats() Stats {
	st.mu.RLock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.RUnlock()

	out := Stats{Sessions: len(sessions)}
	for _, s := range sessions {
		out.Messages += s.Len()
	}
	return out
}

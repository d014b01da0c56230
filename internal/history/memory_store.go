package history

import (
	"context"
	"sync"
)

// MemoryStore mantém o histórico em memória do processo; usado quando não
// há Postgres configurado.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Message)}
}

func (s *MemoryStore) ForSession(sessionID string) ChatHistory {
	return &memoryHistory{store: s, sessionID: sessionID}
}

func (s *MemoryStore) Close() error {
	return nil
}

type memoryHistory struct {
	store     *MemoryStore
	sessionID string
}

func (h *memoryHistory) AddUserMessage(_ context.Context, text string) error {
	h.add(Message{Type: TypeHuman, Content: text})
	return nil
}

func (h *memoryHistory) AddAIMessage(_ context.Context, text string) error {
	h.add(Message{Type: TypeAI, Content: text})
	return nil
}

func (h *memoryHistory) add(m Message) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.sessions[h.sessionID] = append(h.store.sessions[h.sessionID], m)
}

func (h *memoryHistory) Messages(_ context.Context) ([]Message, error) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	return append([]Message(nil), h.store.sessions[h.sessionID]...), nil
}

func (h *memoryHistory) Clear(_ context.Context) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	delete(h.store.sessions, h.sessionID)
	return nil
}

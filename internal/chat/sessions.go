package chat

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/accionlabs/intelhub/internal/models"
)

// DefaultSessionCapacity is used when a non-positive capacity is given.
const DefaultSessionCapacity = 100

// SessionStore is an in-memory LRU of chat sessions keyed by ID.
// The least recently used session is evicted when capacity is exceeded.
type SessionStore struct {
	capacity int
	items    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

// NewSessionStore creates a store holding at most capacity sessions.
func NewSessionStore(capacity int) *SessionStore {
	if capacity <= 0 {
		capacity = DefaultSessionCapacity
	}
	return &SessionStore{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Create stores a new session for ds and returns a snapshot of it.
func (s *SessionStore) Create(ds *models.Dataset, description, systemInstruction string, suggested []string) *models.Session {
	sess := &models.Session{
		ID:                 uuid.New().String(),
		Description:        description,
		SystemInstruction:  systemInstruction,
		SuggestedQuestions: suggested,
		Dataset:            ds,
		History:            []models.Message{},
		CreatedAt:          time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[sess.ID] = s.lru.PushFront(sess)
	if s.lru.Len() > s.capacity {
		if oldest := s.lru.Back(); oldest != nil {
			s.lru.Remove(oldest)
			delete(s.items, oldest.Value.(*models.Session).ID)
		}
	}
	return snapshot(sess)
}

// Get returns a snapshot of the session and marks it recently used.
func (s *SessionStore) Get(id string) (*models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		return nil, false
	}
	s.lru.MoveToFront(elem)
	return snapshot(elem.Value.(*models.Session)), true
}

// Append adds messages to the session history. It reports false if the session is gone.
func (s *SessionStore) Append(id string, msgs ...models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		return false
	}
	sess := elem.Value.(*models.Session)
	sess.History = append(sess.History, msgs...)
	s.lru.MoveToFront(elem)
	return true
}

// Delete removes the session. It reports whether it existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		return false
	}
	s.lru.Remove(elem)
	delete(s.items, id)
	return true
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// snapshot copies the session so callers never share its history slice. The dataset is shared; it is read-only.
func snapshot(sess *models.Session) *models.Session {
	cp := *sess
	cp.History = make([]models.Message, len(sess.History))
	copy(cp.History, sess.History)
	cp.SuggestedQuestions = append([]string(nil), sess.SuggestedQuestions...)
	return &cp
}

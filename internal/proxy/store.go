package proxy

// Store is the persistence abstraction for cookie sessions.
// The SessionStore serializes access, so implementations need no locking of
// their own. Only an in-memory implementation exists: sessions do not survive
// a restart.
type Store interface {
	Get(key SessionKey) (*Session, bool)
	Set(s *Session)
	Delete(key SessionKey)
	Keys() []SessionKey
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	sessions map[SessionKey]*Session
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[SessionKey]*Session),
	}
}

// Get implements Store.Get.
func (s *InMemoryStore) Get(key SessionKey) (*Session, bool) {
	sess, ok := s.sessions[key]
	return sess, ok
}

// Set implements Store.Set.
func (s *InMemoryStore) Set(sess *Session) {
	s.sessions[sess.Key] = sess
}

// Delete implements Store.Delete.
func (s *InMemoryStore) Delete(key SessionKey) {
	delete(s.sessions, key)
}

// Keys implements Store.Keys.
func (s *InMemoryStore) Keys() []SessionKey {
	keys := make([]SessionKey, 0, len(s.sessions))
	for k := range s.sessions {
		keys = append(keys, k)
	}
	return keys
}

package session

import "sync"

// Reader is the read-only view of the session handed to screens and the
// access controller.
type Reader interface {
	Snapshot() State
}

// Manager holds the process-wide session. Reads are lock-protected
// snapshots; writes go through the Writer returned by NewManager.
type Manager struct {
	mu     sync.RWMutex
	state  State
	subs   map[int]chan State
	nextID int
}

// Writer is the only way to mutate a Manager. NewManager returns exactly
// one, and it is passed to the startup protocol and the auth operations.
type Writer struct {
	m *Manager
}

// NewManager creates a Manager in the Loading state and its Writer.
func NewManager() (*Manager, *Writer) {
	m := &Manager{
		state: Loading(),
		subs:  make(map[int]chan State),
	}
	return m, &Writer{m: m}
}

// Snapshot returns the current state. Both halves of {User, Token} always
// come from the same write.
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe returns a channel that receives the latest state after every
// write. Slow subscribers only ever see the newest value. The returned
// func unsubscribes and closes the channel.
func (m *Manager) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan State, 1)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

func (m *Manager) set(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishLocked(s)
}

// publishLocked stores s and hands it to every subscriber, replacing any
// value they have not consumed yet. m.mu must be held.
func (m *Manager) publishLocked(s State) {
	m.state = s
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// Authenticate publishes a signed-in state.
func (w *Writer) Authenticate(user Profile, token Credential) {
	w.m.set(Authenticated(user, token))
}

// Reset publishes the anonymous state. Safe to call repeatedly.
func (w *Writer) Reset() {
	w.m.set(Anonymous())
}

// ReplaceUser swaps the profile of an authenticated session. It returns
// false and changes nothing when nobody is signed in.
func (w *Writer) ReplaceUser(user Profile) bool {
	cur := w.m.Snapshot()
	if !cur.IsAuthenticated {
		return false
	}
	return w.swap(cur, Authenticated(user, *cur.Token))
}

// ReplaceToken swaps the credential of an authenticated session, keeping
// the profile. It returns false when nobody is signed in.
func (w *Writer) ReplaceToken(token Credential) bool {
	cur := w.m.Snapshot()
	if !cur.IsAuthenticated {
		return false
	}
	return w.swap(cur, Authenticated(*cur.User, token))
}

// swap publishes next only if the state has not moved since cur was read,
// so a logout racing with a replace always wins.
func (w *Writer) swap(cur, next State) bool {
	m := w.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.User != cur.User || m.state.Token != cur.Token {
		return false
	}
	m.publishLocked(next)
	return true
}

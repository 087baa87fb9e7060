package net

import "sort"

// SessionStore holds live sessions for the game loop. Iteration is in
// ascending ID order so per-tick processing is reproducible.
type SessionStore struct {
	byID  map[uint32]*Session
	order []uint32
	dirty bool
}

func NewSessionStore() *SessionStore {
	return &SessionStore{byID: make(map[uint32]*Session)}
}

func (st *SessionStore) Add(s *Session) {
	if _, ok := st.byID[s.ID]; ok {
		return
	}
	st.byID[s.ID] = s
	st.order = append(st.order, s.ID)
	st.dirty = true
}

func (st *SessionStore) Remove(id uint32) {
	if _, ok := st.byID[id]; !ok {
		return
	}
	delete(st.byID, id)
	for i, v := range st.order {
		if v == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
}

func (st *SessionStore) Get(id uint32) *Session {
	return st.byID[id]
}

func (st *SessionStore) Len() int { return len(st.byID) }

// ForEach visits sessions in ID order. fn may Remove the current session.
func (st *SessionStore) ForEach(fn func(*Session)) {
	if st.dirty {
		sort.Slice(st.order, func(i, j int) bool { return st.order[i] < st.order[j] })
		st.dirty = false
	}
	ids := make([]uint32, len(st.order))
	copy(ids, st.order)
	for _, id := range ids {
		if s, ok := st.byID[id]; ok {
			fn(s)
		}
	}
}

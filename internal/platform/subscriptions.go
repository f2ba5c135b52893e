package platform

import "sync"

type subscriptionKey struct {
	ref Ref
	n   Notification
}

// Subscriptions tracks (element, notification) pairs for backends whose native
// event source is global and has to be filtered before delivery.
type Subscriptions struct {
	mu   sync.RWMutex
	keys map[subscriptionKey]struct{}
}

// NewSubscriptions returns an empty subscription set.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{keys: make(map[subscriptionKey]struct{})}
}

// Add records a subscription. It reports false if it already existed.
func (s *Subscriptions) Add(ref Ref, n Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := subscriptionKey{ref: ref, n: n}
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	return true
}

// Remove drops a subscription. It reports whether it existed.
func (s *Subscriptions) Remove(ref Ref, n Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := subscriptionKey{ref: ref, n: n}
	if _, ok := s.keys[k]; !ok {
		return false
	}
	delete(s.keys, k)
	return true
}

// RemoveApplication drops every subscription owned by pid.
func (s *Subscriptions) RemoveApplication(pid PID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.keys {
		if k.ref.PID == pid {
			delete(s.keys, k)
		}
	}
}

// Wants reports whether an event n for ref should be delivered. Workspace
// notifications are always delivered; an application-level subscription
// covers all of its elements.
func (s *Subscriptions) Wants(ref Ref, n Notification) bool {
	if n.IsWorkspace() {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.keys[subscriptionKey{ref: ref, n: n}]; ok {
		return true
	}
	_, ok := s.keys[subscriptionKey{ref: ref.Application(), n: n}]
	return ok
}

// Len returns the number of active subscriptions.
func (s *Subscriptions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

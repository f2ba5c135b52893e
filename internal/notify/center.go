// Package notify is an in-process notification channel: observers register
// for a name and receive every notification posted under it.
package notify

import "sync"

// Notification is a posted name plus its user-info dictionary.
type Notification struct {
	Name     string
	UserInfo map[string]any
}

// Token identifies an observer registration.
type Token uint64

type observer struct {
	token Token
	fn    func(Notification)
}

// Center delivers posted notifications to the observers registered for
// their name, synchronously and in registration order.
type Center struct {
	mu        sync.RWMutex
	next      Token
	observers map[string][]observer
}

var defaultCenter = NewCenter()

// Default returns the process-wide center.
func Default() *Center {
	return defaultCenter
}

// NewCenter returns an empty center.
func NewCenter() *Center {
	return &Center{observers: make(map[string][]observer)}
}

// AddObserver registers fn for name.
func (c *Center) AddObserver(name string, fn func(Notification)) Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.observers[name] = append(c.observers[name], observer{token: c.next, fn: fn})
	return c.next
}

// RemoveObserver unregisters the observer and releases its closure.
func (c *Center) RemoveObserver(token Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, obs := range c.observers {
		for i, o := range obs {
			if o.token != token {
				continue
			}
			obs = append(obs[:i:i], obs[i+1:]...)
			if len(obs) == 0 {
				delete(c.observers, name)
			} else {
				c.observers[name] = obs
			}
			return
		}
	}
}

// Post delivers a notification to every observer of name. Observers may add
// or remove observers while being called.
func (c *Center) Post(name string, userInfo map[string]any) {
	c.mu.RLock()
	obs := append([]observer(nil), c.observers[name]...)
	c.mu.RUnlock()

	n := Notification{Name: name, UserInfo: userInfo}
	for _, o := range obs {
		o.fn(n)
	}
}

// Observers returns the number of observers registered for name.
func (c *Center) Observers(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.observers[name])
}

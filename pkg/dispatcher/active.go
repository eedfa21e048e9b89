package dispatcher

import "sync"

// ActiveConversation is the conversation currently open in the UI. It is
// written by whoever tracks navigation and read by the dispatcher.
type ActiveConversation struct {
	mu sync.RWMutex
	id string
}

// NewActiveConversation creates an empty holder
func NewActiveConversation() *ActiveConversation {
	return &ActiveConversation{}
}

// Set records the open conversation; an empty id clears it
func (a *ActiveConversation) Set(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.id = id
}

// Clear records that no conversation is open
func (a *ActiveConversation) Clear() {
	a.Set("")
}

// Get returns the open conversation, if any
func (a *ActiveConversation) Get() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.id, a.id != ""
}

// Is reports whether id is the open conversation
func (a *ActiveConversation) Is(id string) bool {
	cur, ok := a.Get()
	return ok && cur == id
}

package mixer

import (
	"sync"

	"github.com/google/uuid"
)

// Listeners is a set of optional callbacks for changes of the mixer state.
// Nil callbacks are skipped.
type Listeners struct {
	// OnMixChange is called when the name or color of a mix changes.
	OnMixChange func(mix string)

	// OnInputChange is called when the name or color of an input changes.
	OnInputChange func(input string)

	// OnLevelChange is called when a level changes. input is Self for the
	// level of the mix itself.
	OnLevelChange func(mix, input string)

	// OnMuteChange is called when a mute state changes. input is Self for the
	// mix itself.
	OnMuteChange func(mix, input string)

	// OnMetersChange is called once per meter refresh.
	OnMetersChange func()
}

// ListenerID identifies a registered set of listeners.
type ListenerID uuid.UUID

func (id ListenerID) String() string {
	return uuid.UUID(id).String()
}

// Registry keeps the listeners of one mixer instance.
type Registry struct {
	mu        sync.RWMutex
	order     []ListenerID
	listeners map[ListenerID]Listeners
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{listeners: make(map[ListenerID]Listeners)}
}

// Register adds a set of listeners and returns the handle to remove it again.
func (r *Registry) Register(l Listeners) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := ListenerID(uuid.New())
	r.listeners[id] = l
	r.order = append(r.order, id)
	return id
}

// Unregister removes a set of listeners. Unknown ids are ignored.
func (r *Registry) Unregister(id ListenerID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.listeners[id]; !ok {
		return
	}
	delete(r.listeners, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered listener sets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// snapshot copies the listeners in registration order so callbacks run
// without holding the lock.
func (r *Registry) snapshot() []Listeners {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Listeners, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.listeners[id])
	}
	return out
}

func (r *Registry) FireMixChange(mix string) {
	for _, l := range r.snapshot() {
		if l.OnMixChange != nil {
			l.OnMixChange(mix)
		}
	}
}

func (r *Registry) FireInputChange(input string) {
	for _, l := range r.snapshot() {
		if l.OnInputChange != nil {
			l.OnInputChange(input)
		}
	}
}

func (r *Registry) FireLevelChange(mix, input string) {
	for _, l := range r.snapshot() {
		if l.OnLevelChange != nil {
			l.OnLevelChange(mix, input)
		}
	}
}

func (r *Registry) FireMuteChange(mix, input string) {
	for _, l := range r.snapshot() {
		if l.OnMuteChange != nil {
			l.OnMuteChange(mix, input)
		}
	}
}

func (r *Registry) FireMetersChange() {
	for _, l := range r.snapshot() {
		if l.OnMetersChange != nil {
			l.OnMetersChange()
		}
	}
}

// Forward returns listeners that pass every event on to r. It lets a
// long-lived registry follow a mixer that gets replaced.
func (r *Registry) Forward() Listeners {
	return Listeners{
		OnMixChange:    r.FireMixChange,
		OnInputChange:  r.FireInputChange,
		OnLevelChange:  r.FireLevelChange,
		OnMuteChange:   r.FireMuteChange,
		OnMetersChange: r.FireMetersChange,
	}
}

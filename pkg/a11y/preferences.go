package a11y

import "sync"

// Preferences are the user's accessibility preferences at one point in time.
type Preferences struct {
	// ReducedMotion requests that animation be skipped entirely.
	ReducedMotion bool `json:"reduced_motion"`

	// HighContrast requests the high-contrast presentation variant.
	HighContrast bool `json:"high_contrast"`
}

// PreferenceProvider exposes the platform's accessibility preferences. The
// orchestrator polls Current at session start; Subscribe exists for embedders
// that want to react to preference flips between sessions.
type PreferenceProvider interface {
	// Current returns the preferences as of now.
	Current() Preferences

	// Subscribe registers a callback invoked on preference changes. The
	// returned function unsubscribes.
	Subscribe(fn func(Preferences)) (unsubscribe func())
}

// StaticProvider is a PreferenceProvider with settable state. It doubles as
// the fake provider for tests and as a bridge for hosts that push preference
// changes into the engine.
type StaticProvider struct {
	mu    sync.Mutex
	prefs Preferences
	subs  map[int]func(Preferences)
	next  int
}

// NewStaticProvider creates a provider with the given initial preferences.
func NewStaticProvider(prefs Preferences) *StaticProvider {
	return &StaticProvider{
		prefs: prefs,
		subs:  make(map[int]func(Preferences)),
	}
}

// Current implements PreferenceProvider.
func (p *StaticProvider) Current() Preferences {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prefs
}

// Set replaces the preferences and notifies subscribers.
func (p *StaticProvider) Set(prefs Preferences) {
	p.mu.Lock()
	p.prefs = prefs
	fns := make([]func(Preferences), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(prefs)
	}
}

// Subscribe implements PreferenceProvider.
func (p *StaticProvider) Subscribe(fn func(Preferences)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

package breaker

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry owns the breakers of one process, keyed by endpoint name
// ("alpaca", "eodhd", ...). Build it once at startup and hand it to the
// components that make the corresponding calls.
type Registry struct {
	defaults Settings

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry returns an empty registry. defaults supplies threshold,
// timeout, clock, logger and state-change hook for breakers created by Get.
func NewRegistry(defaults Settings) *Registry {
	return &Registry{
		defaults: defaults,
		breakers: make(map[string]*Breaker),
	}
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register creates (or replaces) the breaker for st.Name. Unset fields are
// taken from the registry defaults.
func (r *Registry) Register(st Settings) *Breaker {
	st = r.fill(st)
	b := New(st)

	r.mu.Lock()
	r.breakers[key(st.Name)] = b
	r.mu.Unlock()
	return b
}

// Get returns the breaker for name, creating it with the registry defaults
// on first use. Lookup is case-insensitive.
func (r *Registry) Get(name string) *Breaker {
	k := key(name)

	r.mu.RLock()
	b, ok := r.breakers[k]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[k]; ok {
		return b
	}
	b = New(r.fill(Settings{Name: k}))
	r.breakers[k] = b
	return b
}

// Lookup is Get without lazy creation.
func (r *Registry) Lookup(name string) (*Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.breakers[key(name)]
	return b, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.breakers))
	for k := range r.breakers {
		names = append(names, k)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Statuses returns a snapshot of every breaker, sorted by name.
func (r *Registry) Statuses() []Status {
	names := r.Names()
	out := make([]Status, 0, len(names))
	for _, n := range names {
		if b, ok := r.Lookup(n); ok {
			out = append(out, b.Status())
		}
	}
	return out
}

// ResetAll force-closes every breaker.
func (r *Registry) ResetAll() {
	for _, n := range r.Names() {
		if b, ok := r.Lookup(n); ok {
			b.ForceClose()
		}
	}
}

func (r *Registry) fill(st Settings) Settings {
	if st.FailureThreshold <= 0 {
		st.FailureThreshold = r.defaults.FailureThreshold
	}
	if st.RecoveryTimeout <= 0 {
		st.RecoveryTimeout = r.defaults.RecoveryTimeout
	}
	if st.Now == nil {
		st.Now = r.defaults.Now
	}
	if st.Logger == nil {
		st.Logger = r.defaults.Logger
	}
	if st.OnStateChange == nil {
		st.OnStateChange = r.defaults.OnStateChange
	}
	if st.OnReject == nil {
		st.OnReject = r.defaults.OnReject
	}
	st.Name = key(st.Name)
	return st
}

// DefaultEndpoints are the external dependencies every strategy talks to.
var DefaultEndpoints = []string{"alpaca", "eodhd", "finviz", "fmp"}

// Endpoint overrides the registry defaults for one name.
type Endpoint struct {
	Name             string
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// RegisterAll registers DefaultEndpoints plus every override in eps.
func (r *Registry) RegisterAll(eps []Endpoint, log *zerolog.Logger) {
	seen := make(map[string]bool)
	for _, ep := range eps {
		r.Register(Settings{
			Name:             ep.Name,
			FailureThreshold: ep.FailureThreshold,
			RecoveryTimeout:  ep.RecoveryTimeout,
			Logger:           log,
		})
		seen[key(ep.Name)] = true
	}
	for _, name := range DefaultEndpoints {
		if !seen[name] {
			r.Register(Settings{Name: name, Logger: log})
		}
	}
}

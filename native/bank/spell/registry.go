package spell

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"lendcore/native/bank"
)

var ErrUnknownSpell = errors.New("spell: unknown spell")

// Registry resolves spells by name for callers that cannot hand over a Go
// value, such as the HTTP gateway.
type Registry struct {
	mu     sync.RWMutex
	spells map[string]bank.Spell
}

// NewRegistry returns a registry holding the built-in spells.
func NewRegistry() *Registry {
	r := &Registry{spells: make(map[string]bank.Spell)}
	r.Register(Household{})
	return r
}

func (r *Registry) Register(s bank.Spell) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spells[strings.ToLower(s.Name())] = s
}

func (r *Registry) Lookup(name string) (bank.Spell, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.spells[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSpell, name)
	}
	return s, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.spells))
	for name := range r.spells {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

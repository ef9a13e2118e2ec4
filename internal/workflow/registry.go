package workflow

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps name@version to a skill implementation.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]Skill
}

func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]Skill)}
}

// Register adds a skill; registering the same name@version twice is an error.
func (r *Registry) Register(s Skill) error {
	key := SkillRef{Name: s.Name(), Version: s.Version()}.Key()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.skills[key]; ok {
		return fmt.Errorf("register %s: %w", key, ErrDuplicateSkill)
	}
	r.skills[key] = s
	return nil
}

// MustRegister panics on the first registration error. Intended for wiring at startup.
func (r *Registry) MustRegister(skills ...Skill) *Registry {
	for _, s := range skills {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Lookup(ref SkillRef) (Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[ref.Key()]
	return s, ok
}

// Keys returns registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.skills))
	for k := range r.skills {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// Plan is a validated definition with its execution order.
type Plan struct {
	Name   string
	Order  []Step
	skills map[string]Skill
}

// IDs returns the step ids in execution order.
func (p *Plan) IDs() []string {
	ids := make([]string, len(p.Order))
	for i, s := range p.Order {
		ids[i] = s.ID
	}
	return ids
}

// Compile validates def against reg and orders its steps. Ready steps are
// taken in lexicographic id order so the result is deterministic.
func Compile(def Definition, reg *Registry) (*Plan, error) {
	byID := make(map[string]Step, len(def.Steps))
	for _, s := range def.Steps {
		if s.ID == "" {
			return nil, fmt.Errorf("workflow %s: %w", def.Name, ErrEmptyStepID)
		}
		if _, ok := byID[s.ID]; ok {
			return nil, fmt.Errorf("workflow %s: %w: %s", def.Name, ErrDuplicateStep, s.ID)
		}
		byID[s.ID] = s
	}

	indegree := make(map[string]int, len(byID))
	dependents := make(map[string][]string, len(byID))
	skills := make(map[string]Skill, len(byID))
	for _, s := range def.Steps {
		deps := s.dependencies()
		for _, dep := range deps {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("workflow %s: step %s: %w: %s", def.Name, s.ID, ErrUnknownDependency, dep)
			}
			dependents[dep] = append(dependents[dep], s.ID)
		}
		indegree[s.ID] = len(deps)

		sk, ok := reg.Lookup(s.Skill)
		if !ok {
			return nil, fmt.Errorf("workflow %s: step %s: %w: %s", def.Name, s.ID, ErrMissingSkill, s.Skill.Key())
		}
		skills[s.Skill.Key()] = sk
	}

	for _, s := range def.Steps {
		if s.From == "" || s.Input != nil {
			continue
		}
		if err := checkTypes(skills[byID[s.From].Skill.Key()], skills[s.Skill.Key()]); err != nil {
			return nil, fmt.Errorf("workflow %s: step %s from %s: %w", def.Name, s.ID, s.From, err)
		}
	}

	ready := make([]string, 0, len(byID))
	for id, n := range indegree {
		if n == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]Step, 0, len(byID))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, byID[id])

		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		sort.Strings(ready)
	}

	if len(order) != len(byID) {
		left := make([]string, 0, len(byID)-len(order))
		for id, n := range indegree {
			if n > 0 {
				left = append(left, id)
			}
		}
		sort.Strings(left)
		return nil, fmt.Errorf("workflow %s: %w among steps %s", def.Name, ErrCycle, strings.Join(left, ", "))
	}

	return &Plan{Name: def.Name, Order: order, skills: skills}, nil
}

func checkTypes(producer, consumer Skill) error {
	p, ok := producer.(Typed)
	if !ok {
		return nil
	}
	c, ok := consumer.(Typed)
	if !ok {
		return nil
	}
	if !p.OutputType().AssignableTo(c.InputType()) {
		return fmt.Errorf("%w: %s produces %s, %s wants %s", ErrTypeMismatch,
			producer.Name(), p.OutputType(), consumer.Name(), c.InputType())
	}
	return nil
}

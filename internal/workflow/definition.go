package workflow

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"SignalForge/internal/domain/models"
)

var (
	ErrDuplicateStep     = errors.New("duplicate step id")
	ErrEmptyStepID       = errors.New("empty step id")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrMissingSkill      = errors.New("missing skill implementation")
	ErrCycle             = errors.New("dependency cycle")
	ErrDuplicateSkill    = errors.New("skill already registered")
	ErrInputType         = errors.New("unexpected skill input type")
	ErrTypeMismatch      = errors.New("step output does not fit consumer input")
)

// SkillRef names a registered skill by name and version.
type SkillRef struct {
	Name    string
	Version string
}

// Key is the registry key, name@version.
func (r SkillRef) Key() string {
	return r.Name + "@" + r.Version
}

func (r SkillRef) String() string { return r.Key() }

// InputMapper derives a step's input from the run context and the outputs
// produced so far.
type InputMapper func(wctx models.WorkflowContext, state *PipelineState, shared *SharedState) (any, error)

// Step is a node of the workflow graph. From names a step whose output is
// passed verbatim as this step's input; it is an implicit dependency and,
// for typed skills, checked for type compatibility at compile time.
// Input takes precedence over From when both are set.
type Step struct {
	ID        string
	Skill     SkillRef
	DependsOn []string
	From      string
	Input     InputMapper
}

func (s Step) dependencies() []string {
	if s.From == "" {
		return s.DependsOn
	}
	for _, d := range s.DependsOn {
		if d == s.From {
			return s.DependsOn
		}
	}
	return append(append([]string{}, s.DependsOn...), s.From)
}

// Definition is a named DAG of steps.
type Definition struct {
	Name  string
	Steps []Step
}

// Input is what a skill receives when its step runs.
type Input struct {
	Context models.WorkflowContext
	State   *PipelineState
	Shared  *SharedState
	Value   any
}

// Skill is a unit of work addressed by name and version.
type Skill interface {
	Name() string
	Version() string
	Run(ctx context.Context, in Input) (any, error)
}

// Typed is implemented by skills that declare their input and output types.
type Typed interface {
	InputType() reflect.Type
	OutputType() reflect.Type
}

type funcSkill[I, O any] struct {
	name    string
	version string
	fn      func(ctx context.Context, in Input, v I) (O, error)
}

// NewSkill adapts a typed function to Skill. A nil input value is passed as
// the zero value of I; any other value must be assignable to I.
func NewSkill[I, O any](name, version string, fn func(ctx context.Context, in Input, v I) (O, error)) Skill {
	return &funcSkill[I, O]{name: name, version: version, fn: fn}
}

func (s *funcSkill[I, O]) Name() string             { return s.name }
func (s *funcSkill[I, O]) Version() string          { return s.version }
func (s *funcSkill[I, O]) InputType() reflect.Type  { return reflect.TypeOf((*I)(nil)).Elem() }
func (s *funcSkill[I, O]) OutputType() reflect.Type { return reflect.TypeOf((*O)(nil)).Elem() }

func (s *funcSkill[I, O]) Run(ctx context.Context, in Input) (any, error) {
	var v I
	if in.Value != nil {
		typed, ok := in.Value.(I)
		if !ok {
			return nil, fmt.Errorf("%w: %s@%s wants %T, got %T", ErrInputType, s.name, s.version, v, in.Value)
		}
		v = typed
	}
	return s.fn(ctx, in, v)
}

package trial

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nyxlab/boxd/pkg/errors"
)

// Builder constructs one trial variant from its timeline parameters.
type Builder func(ctx *Context, params map[string]interface{}) (Trial, error)

// Registry maps trial type names, as they appear in uploaded timelines,
// to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]Builder),
	}
}

// Register adds a builder under kind.
func (r *Registry) Register(kind string, b Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[kind]; exists {
		return errors.Trialf(errors.ErrTrialAlreadyRegistered, "trial type %q already registered", kind).
			WithContext("type", kind)
	}
	r.builders[kind] = b
	return nil
}

// Known reports whether kind has a registered builder.
func (r *Registry) Known(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[kind]
	return ok
}

// Kinds returns all registered type names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.builders))
	for kind := range r.builders {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Create builds a trial of the given kind.
func (r *Registry) Create(kind string, params map[string]interface{}, ctx *Context) (Trial, error) {
	r.mu.RLock()
	b, ok := r.builders[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.TrialTypeUnknown(kind)
	}
	return b(ctx, params)
}

// Default returns a registry with every built-in trial type.
func Default() *Registry {
	r := NewRegistry()
	mustRegister(r, "Interval", buildInterval)
	mustRegister(r, "Stage1", func(ctx *Context, _ map[string]interface{}) (Trial, error) {
		return NewStage1(ctx), nil
	})
	mustRegister(r, "Stage2", func(ctx *Context, _ map[string]interface{}) (Trial, error) {
		return NewStage2(ctx), nil
	})
	mustRegister(r, "Stage3", func(ctx *Context, _ map[string]interface{}) (Trial, error) {
		return NewStage3(ctx), nil
	})
	mustRegister(r, "Stage4", func(ctx *Context, _ map[string]interface{}) (Trial, error) {
		return NewStage4(ctx), nil
	})
	return r
}

// mustRegister panics on a registration conflict. The built-in kinds are
// fixed at compile time, so a conflict here is a programming error.
func mustRegister(r *Registry, kind string, b Builder) {
	if err := r.Register(kind, b); err != nil {
		panic(err)
	}
}

func buildInterval(ctx *Context, params map[string]interface{}) (Trial, error) {
	duration, ok, err := intParam(params, "duration")
	if err != nil {
		return nil, errors.TrialParamsInvalid("Interval", err)
	}
	if !ok {
		duration = ctx.Random.ITI(ctx.Config.ITIMinimum, ctx.Config.ITIMaximum)
		ctx.Log.Debug().
			Int64("duration_ms", duration).
			Msg("no interval duration provided, drew one from the ITI bounds")
	}
	return NewInterval(ctx, duration), nil
}

// intParam reads an integer parameter. JSON decoding hands numbers over
// as float64, so both forms are accepted.
func intParam(params map[string]interface{}, key string) (int64, bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true, nil
	case int:
		return int64(n), true, nil
	case int64:
		return n, true, nil
	}
	return 0, false, fmt.Errorf("parameter %q must be a number, got %T", key, v)
}

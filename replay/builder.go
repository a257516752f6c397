package replay

import (
	"fmt"

	"github.com/brutalist-labs/dtre/dtre/config"
	"github.com/brutalist-labs/dtre/execctx"
	"github.com/brutalist-labs/dtre/rules"
	"github.com/brutalist-labs/dtre/state"
)

// Option configures a Builder. Named after the teacher engine's
// EngineOption — a functional-options list applied in order after the
// Builder's required fields are set, so later options can override
// earlier ones.
type Option func(*Builder)

// WithConfig applies an ambient EngineConfig (checkpoint cadence, worker
// count) to the engine under construction.
func WithConfig(cfg config.EngineConfig) Option {
	return func(b *Builder) {
		b.cfg = cfg
	}
}

// WithMaxWorkers overrides the configured MaxWorkers directly, without
// requiring a full EngineConfig — convenient for tests that only care
// about this one knob.
func WithMaxWorkers(n int) Option {
	return func(b *Builder) {
		b.cfg.MaxWorkers = n
	}
}

// Builder assembles an Engine from an initial state, a rule set, and a
// sealed execution context. Build validates everything it's given before
// returning an Engine, so a caller never gets back a half-usable engine
// it has to separately check.
type Builder struct {
	initial state.Type
	ruleSet rules.RuleSet
	ctx     *execctx.Context
	cfg     config.EngineConfig
}

// NewBuilder starts a Builder with its three required components. Options
// (WithConfig, WithMaxWorkers) may be passed to override ambient
// defaults before calling Build.
func NewBuilder(initial state.Type, ruleSet rules.RuleSet, ctx *execctx.Context, opts ...Option) *Builder {
	b := &Builder{
		initial: initial,
		ruleSet: ruleSet,
		ctx:     ctx,
		cfg:     config.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build validates the builder's configuration and constructs an Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.initial == nil {
		return nil, fmt.Errorf("replay: builder requires an initial state")
	}
	if b.ruleSet == nil {
		return nil, fmt.Errorf("replay: builder requires a rule set")
	}
	if b.ctx == nil {
		return nil, fmt.Errorf("replay: builder requires a sealed execution context")
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("replay: invalid config: %w", err)
	}

	mgr, err := state.NewManager(b.initial)
	if err != nil {
		return nil, fmt.Errorf("replay: initial state rejected: %w", err)
	}

	return &Engine{
		mgr:     mgr,
		ruleSet: b.ruleSet,
		ctx:     b.ctx,
		cfg:     b.cfg,
	}, nil
}

package botbuddy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/VinayDangodra28/botbuddy/internal/analyzer"
	"github.com/VinayDangodra28/botbuddy/internal/controller"
	"github.com/VinayDangodra28/botbuddy/internal/flowgraph"
	"github.com/VinayDangodra28/botbuddy/internal/interrupt"
	"github.com/VinayDangodra28/botbuddy/internal/logging"
	"github.com/VinayDangodra28/botbuddy/internal/metrics"
	"github.com/VinayDangodra28/botbuddy/pkg/adapters/memory"
	"github.com/VinayDangodra28/botbuddy/pkg/domain"
	"github.com/VinayDangodra28/botbuddy/pkg/ports"
	"github.com/VinayDangodra28/botbuddy/pkg/session"
)

// Version is the library version, overridable at build time via -ldflags.
var Version = "0.1.0-dev"

// Engine is the high-level entry point: a loaded flow graph, the turn
// controller, and serialized session access behind one API.
type Engine struct {
	graph    *flowgraph.Store
	sessions *session.Manager

	ctrl     *controller.Controller
	analyzer *analyzer.Analyzer
	engine   *interrupt.Engine

	// collaborators picked up from options before wiring
	generator  ports.Generator
	profiles   ports.ProfileProvider
	store      ports.SessionStore
	locker     ports.DistributedLocker
	journal    ports.SuggestionJournal
	sink       ports.GraphSink
	tables     *analyzer.Tables
	registry   prometheus.Registerer
	logger     *slog.Logger
	genTimeout time.Duration
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a structured logger shared by all components.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithGenerator injects the reply generator used when the script runs out.
// Without one, unscripted turns get the fixed fallback reply.
func WithGenerator(gen ports.Generator) Option {
	return func(e *Engine) {
		if gen != nil {
			e.generator = gen
		}
	}
}

// WithProfileProvider injects the customer profile source for {field}
// template interpolation.
func WithProfileProvider(p ports.ProfileProvider) Option {
	return func(e *Engine) {
		if p != nil {
			e.profiles = p
		}
	}
}

// WithSessionStore replaces the default in-memory session store.
func WithSessionStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		if store != nil {
			e.store = store
		}
	}
}

// WithLocker enables distributed session locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) { e.locker = locker }
}

// WithSuggestionJournal persists pending suggestions across restarts.
func WithSuggestionJournal(j ports.SuggestionJournal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithGraphSink persists the committed graph after suggestions are applied.
func WithGraphSink(sink ports.GraphSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithAnalyzerTables replaces the default utterance-matching vocabulary.
func WithAnalyzerTables(tables *analyzer.Tables) Option {
	return func(e *Engine) { e.tables = tables }
}

// WithMetrics registers the engine's Prometheus instruments on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.registry = reg }
}

// WithGeneratorTimeout bounds each generator call.
func WithGeneratorTimeout(d time.Duration) Option {
	return func(e *Engine) { e.genTimeout = d }
}

// New loads the flow definition from source and wires the engine.
func New(source ports.GraphSource, opts ...Option) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("a graph source is required")
	}
	doc, err := source.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load flow definition: %w", err)
	}

	e := &Engine{
		logger:   logging.NewNop(),
		profiles: ports.StaticProfile{},
		generator: ports.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
			return ports.FallbackReply, nil
		}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.sink == nil {
		if sink, ok := source.(ports.GraphSink); ok {
			e.sink = sink
		}
	}

	graphOpts := []flowgraph.Option{flowgraph.WithLogger(e.logger)}
	if e.journal != nil {
		graphOpts = append(graphOpts, flowgraph.WithJournal(e.journal))
	}
	if e.sink != nil {
		graphOpts = append(graphOpts, flowgraph.WithSink(e.sink))
	}
	e.graph = flowgraph.New(doc, graphOpts...)
	if entry := e.graph.EntryBranch(); e.graph.GetBranch(entry) == nil {
		return nil, &domain.StructuralError{
			BranchID: entry,
			Problems: []string{"entry branch does not exist"},
		}
	}

	analyzerOpts := []analyzer.Option{analyzer.WithLogger(e.logger)}
	if e.tables != nil {
		analyzerOpts = append(analyzerOpts, analyzer.WithTables(e.tables))
	}
	e.analyzer = analyzer.New(e.graph, analyzerOpts...)
	e.engine = interrupt.New(e.graph, interrupt.WithLogger(e.logger))

	ctrlOpts := []controller.Option{controller.WithLogger(e.logger)}
	if e.registry != nil {
		ctrlOpts = append(ctrlOpts, controller.WithMetrics(metrics.New(e.registry)))
	}
	if e.genTimeout > 0 {
		ctrlOpts = append(ctrlOpts, controller.WithGeneratorTimeout(e.genTimeout))
	}
	e.ctrl = controller.New(e.graph, e.analyzer, e.engine, e.generator, e.profiles, ctrlOpts...)

	sessionOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(e.store, sessionOpts...)

	return e, nil
}

// Open starts (or reopens) a session and returns the agent's opening script.
func (e *Engine) Open(ctx context.Context, sessionID string) (*domain.TurnResult, error) {
	var result *domain.TurnResult
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := e.loadOrStart(ctx, sessionID)
		if err != nil {
			return err
		}
		result = e.ctrl.Open(state)
		return e.store.Save(ctx, sessionID, state)
	})
	return result, err
}

// Converse processes one customer utterance for the session: load state,
// run the turn, save state, all under the session lock.
func (e *Engine) Converse(ctx context.Context, sessionID, utterance string) (*domain.TurnResult, error) {
	var result *domain.TurnResult
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := e.loadOrStart(ctx, sessionID)
		if err != nil {
			return err
		}
		result = e.ctrl.ProcessTurn(ctx, utterance, state)
		return e.store.Save(ctx, sessionID, state)
	})
	return result, err
}

// loadOrStart runs inside the session lock.
func (e *Engine) loadOrStart(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	state, err := e.store.Load(ctx, sessionID)
	if err == domain.ErrSessionNotFound {
		return domain.NewSession(sessionID, e.graph.EntryBranch()), nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Session returns the stored state of a session.
func (e *Engine) Session(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	return e.sessions.Load(ctx, sessionID)
}

// EndSession deletes a session's stored state.
func (e *Engine) EndSession(ctx context.Context, sessionID string) error {
	return e.sessions.Delete(ctx, sessionID)
}

// Sessions lists stored session IDs.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Graph exposes the flow graph store: branch lookups, validation, audit,
// and the suggestion protocol.
func (e *Engine) Graph() *flowgraph.Store {
	return e.graph
}

// Controller exposes the turn controller for transport adapters.
func (e *Engine) Controller() *controller.Controller {
	return e.ctrl
}

// SessionManager exposes the session manager for transport adapters.
func (e *Engine) SessionManager() *session.Manager {
	return e.sessions
}

// Package controller sequences the per-turn decision procedure: callback
// confirmation, interruption follow-ups, post-interruption re-validation,
// interruption detection, scripted matching, and the redirect-or-suggest
// fallback through the external generator.
package controller

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/VinayDangodra28/botbuddy/internal/analyzer"
	"github.com/VinayDangodra28/botbuddy/internal/flowgraph"
	"github.com/VinayDangodra28/botbuddy/internal/interrupt"
	"github.com/VinayDangodra28/botbuddy/internal/logging"
	"github.com/VinayDangodra28/botbuddy/internal/metrics"
	"github.com/VinayDangodra28/botbuddy/pkg/domain"
	"github.com/VinayDangodra28/botbuddy/pkg/ports"
)

// DefaultGeneratorTimeout bounds a single generator call so a slow upstream
// never stalls the session.
const DefaultGeneratorTimeout = 20 * time.Second

var (
	callbackAffirmatives = []string{"yes", "yeah", "sure", "ok", "okay", "continue", "proceed"}
	callbackNegatives    = []string{"no", "not", "busy", "later", "another time", "reschedule"}
)

// Controller drives one conversation turn at a time. Sessions are
// turn-synchronous: a turn does not begin until the previous one, including
// any generator call, completes.
type Controller struct {
	graph      *flowgraph.Store
	analyzer   *analyzer.Analyzer
	interrupts *interrupt.Engine
	generator  ports.Generator
	profiles   ports.ProfileProvider

	logger     *slog.Logger
	metrics    *metrics.Metrics
	genTimeout time.Duration
	threshold  float64
}

// Option configures the Controller.
type Option func(*Controller)

// WithLogger sets a structured logger for turn decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithGeneratorTimeout bounds each generator call.
func WithGeneratorTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.genTimeout = d
		}
	}
}

// WithInterruptionThreshold overrides the detection threshold.
func WithInterruptionThreshold(threshold float64) Option {
	return func(c *Controller) { c.threshold = threshold }
}

// New builds a Controller over the graph and its collaborators.
func New(graph *flowgraph.Store, a *analyzer.Analyzer, e *interrupt.Engine, gen ports.Generator, profiles ports.ProfileProvider, opts ...Option) *Controller {
	c := &Controller{
		graph:      graph,
		analyzer:   a,
		interrupts: e,
		generator:  gen,
		profiles:   profiles,
		logger:     logging.NewNop(),
		metrics:    metrics.NewNop(),
		genTimeout: DefaultGeneratorTimeout,
		threshold:  interrupt.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessTurn runs the per-turn decision procedure for one utterance and
// mutates the session accordingly. The first applicable step wins.
func (c *Controller) ProcessTurn(ctx context.Context, utterance string, session *domain.SessionState) *domain.TurnResult {
	if session.Terminated {
		return c.finish(session, utterance, &domain.TurnResult{
			Reply:   "This conversation has ended. Thank you for your time.",
			Stage:   session.CurrentStage,
			Outcome: domain.OutcomeTerminal,
		})
	}

	profile := c.profileFor(session)

	// An explicit language request updates the preference regardless of
	// which step handles the turn.
	if lang := detectLanguagePreference(utterance); lang != "" {
		session.LanguagePreference = lang
	}

	// Step 1: a resumed callback opens with a confirmation exchange.
	if session.IsCallback && session.CallbackContinuation && !session.CallbackConfirmed {
		return c.finish(session, utterance, c.confirmCallback(utterance, session))
	}

	// Step 2: an active interruption owns the turn.
	if session.InInterruption() {
		fr := c.interrupts.ResolveFollowUp(utterance, session)
		result := &domain.TurnResult{
			Reply:   fr.Reply,
			Stage:   fr.Stage,
			Intent:  session.LastIntent,
			Outcome: domain.OutcomeFollowUp,
		}
		if !fr.Continue {
			session.Terminated = true
			result.FinalMessage = fr.Reply
		}
		result.Continue = fr.Continue
		return c.finish(session, utterance, result)
	}

	// Step 3: freshly back from an interruption, re-validate against the
	// restored stage before anything else.
	var rechecked *analyzer.MatchResult
	if session.ReturnedFromInterruption {
		session.ReturnedFromInterruption = false
		m := c.analyzer.Match(utterance, session.CurrentStage)
		if !m.Matched {
			branch := c.graph.GetBranch(session.CurrentStage)
			reply := "To clarify where we were: "
			if branch != nil {
				reply += branchPrompt(branch, session.LanguagePreference, profile)
			}
			return c.finish(session, utterance, &domain.TurnResult{
				Reply:    reply,
				Stage:    session.CurrentStage,
				Outcome:  domain.OutcomeReprompt,
				Continue: true,
			})
		}
		rechecked = &m
	}

	// Step 4: interruption detection with the compound-response override.
	if d := c.interrupts.Detect(utterance, session.CurrentStage, c.threshold); d.IsInterruption {
		c.metrics.Interruptions.WithLabelValues(d.Intent).Inc()
		return c.finish(session, utterance, c.handleInterruption(d, utterance, session))
	}

	// Step 5: scripted matching against the current stage.
	var m analyzer.MatchResult
	if rechecked != nil {
		m = *rechecked
	} else {
		m = c.analyzer.Match(utterance, session.CurrentStage)
	}
	if m.Matched {
		return c.finish(session, utterance, c.applyMatch(ctx, m, utterance, profile, session))
	}

	// Step 6: nothing on this stage fits; redirect or suggest.
	return c.finish(session, utterance, c.redirectOrSuggest(ctx, utterance, profile, session))
}

// Open produces the opening script of the session's current stage, used to
// start a conversation before the customer has said anything.
func (c *Controller) Open(session *domain.SessionState) *domain.TurnResult {
	profile := c.profileFor(session)
	branch := c.graph.GetBranch(session.CurrentStage)
	if branch == nil {
		session.CurrentStage = c.graph.EntryBranch()
		branch = c.graph.GetBranch(session.CurrentStage)
	}
	reply := ""
	if branch != nil {
		reply = branchPrompt(branch, session.LanguagePreference, profile)
	}
	session.AppendTurn("", reply)
	return &domain.TurnResult{
		Reply:    reply,
		Stage:    session.CurrentStage,
		Outcome:  domain.OutcomeScripted,
		Continue: true,
	}
}

func (c *Controller) confirmCallback(utterance string, session *domain.SessionState) *domain.TurnResult {
	lowered := strings.ToLower(utterance)

	switch {
	case containsAnyToken(lowered, callbackAffirmatives):
		session.CallbackConfirmed = true
		return &domain.TurnResult{
			Reply:    "Great! Let's continue where we left off with your policy renewal.",
			Stage:    session.CurrentStage,
			Intent:   "callback_confirmed",
			Outcome:  domain.OutcomeCallbackConfirm,
			Continue: true,
		}

	case containsAnyToken(lowered, callbackNegatives):
		// Another bad time: collect a fresh callback slot.
		session.PushInterruption("reschedule_callback", utterance)
		session.AwaitingCallbackTime = true
		return &domain.TurnResult{
			Reply:    "I understand this isn't a good time. When would be a better time to call you back?",
			Stage:    session.CurrentStage,
			Intent:   "reschedule_callback",
			Outcome:  domain.OutcomeCallbackConfirm,
			Continue: true,
		}

	default:
		return &domain.TurnResult{
			Reply:    "I'd like to continue our previous conversation about your policy. Is that okay with you?",
			Stage:    session.CurrentStage,
			Intent:   "callback_confirmation",
			Outcome:  domain.OutcomeCallbackConfirm,
			Continue: true,
		}
	}
}

func (c *Controller) handleInterruption(d interrupt.Detection, utterance string, session *domain.SessionState) *domain.TurnResult {
	h := c.interrupts.Handle(d.Intent, utterance, session.CurrentStage, session)
	session.LastIntent = d.Intent

	result := &domain.TurnResult{
		Reply:    h.Reply,
		Stage:    h.Stage,
		Intent:   d.Intent,
		Outcome:  domain.OutcomeInterruption,
		Continue: true,
	}

	// Critical intents end the turn as-is; everything else gets resumption
	// bookkeeping when the intent wants the main flow back.
	if c.interrupts.IsCritical(d.Intent) {
		c.logger.Info("critical interruption", "intent", d.Intent, "stage", h.Stage)
		return result
	}

	if h.ShouldResume && session.InInterruption() {
		// Context stays active; the follow-up resolver owns the next turn.
		return result
	}
	if h.ShouldResume {
		intent := c.graph.Intent(d.Intent)
		if intent != nil && intent.ReturnToMainFlow && h.Stage != session.CurrentStage {
			session.ReturnedFromInterruption = true
		}
	}
	return result
}

func (c *Controller) applyMatch(ctx context.Context, m analyzer.MatchResult, utterance string, profile map[string]string, session *domain.SessionState) *domain.TurnResult {
	next := m.Next
	if next == "" {
		next = session.CurrentStage
	}
	branch := c.graph.GetBranch(session.CurrentStage)
	if branch != nil {
		session.LastIntent = branch.Intent
	}

	var reply string
	outcome := domain.OutcomeScripted
	if m.Response != "" {
		reply = RenderTemplate(m.Response, profile)
	} else {
		// Matched but unscripted: ask the generator, but force the stage
		// transition the rule names regardless of what it proposes.
		prompt := BuildMasterPrompt(utterance, profile, session, branch, next, len(c.graph.PendingOperations()))
		reply = StripMetadata(c.generate(ctx, prompt))
		outcome = domain.OutcomeGenerated
	}

	return c.transition(session, next, reply, outcome)
}

func (c *Controller) redirectOrSuggest(ctx context.Context, utterance string, profile map[string]string, session *domain.SessionState) *domain.TurnResult {
	candidate, confidence := c.analyzer.FindRedirectCandidate(utterance, session.CurrentStage)

	if candidate != "" && confidence >= analyzer.ConfidentRedirectScore {
		target := c.graph.GetBranch(candidate)
		prompt := BuildTransitionPrompt(utterance, session.CurrentStage, target, confidence, profile, session.LanguagePreference)
		reply := StripMetadata(c.generate(ctx, prompt))
		c.logger.Info("redirecting to existing branch", "branch", candidate, "confidence", confidence)

		result := c.transition(session, candidate, reply, domain.OutcomeRedirect)
		result.Intent = target.Intent
		return result
	}

	// No usable redirect: generate a reply plus a branch suggestion, stage
	// the suggestion, and stay put.
	branch := c.graph.GetBranch(session.CurrentStage)
	if branch == nil {
		return &domain.TurnResult{
			Reply:    ports.FallbackReply,
			Stage:    session.CurrentStage,
			Outcome:  domain.OutcomeBranchSuggested,
			Continue: true,
		}
	}

	prompt := BuildSuggestionPrompt(utterance, branch, c.graph.ListBranches(), c.graph.PendingOperations(), session.LanguagePreference)
	raw := c.generate(ctx, prompt)
	reply := StripMetadata(raw)
	if reply == "" {
		reply = "I understand. Let me help you with this. Can you please clarify what you mean?"
	}

	if meta := ExtractMetadata(raw); meta != nil && meta.BranchSuggestion != nil {
		c.stageSuggestion(meta.BranchSuggestion)
	}

	return &domain.TurnResult{
		Reply:    reply,
		Stage:    session.CurrentStage,
		Intent:   "handle_unexpected_response",
		Outcome:  domain.OutcomeBranchSuggested,
		Continue: true,
	}
}

// stageSuggestion appends a generator-proposed branch to the suggestion log.
func (c *Controller) stageSuggestion(s *BranchSuggestion) {
	details := s.Details
	if details.BranchName == "" {
		return
	}
	ok := c.graph.ProposeCreate(&domain.Branch{
		ID:                details.BranchName,
		Intent:            details.Intent,
		Prompt:            details.Prompt,
		ExpectedResponses: details.ExpectedResponses,
	}, details.CalledWhen)
	if ok {
		c.metrics.SuggestionsStaged.Inc()
		c.logger.Info("branch suggestion staged", "branch", details.BranchName, "reasoning", s.Reasoning)
	}
}

// transition moves the session to the next stage, handling terminal
// branches.
func (c *Controller) transition(session *domain.SessionState, next, reply, outcome string) *domain.TurnResult {
	session.CurrentStage = next
	result := &domain.TurnResult{
		Reply:    reply,
		Stage:    next,
		Outcome:  outcome,
		Continue: true,
	}

	if target := c.graph.GetBranch(next); target != nil && target.IsTerminal() {
		session.Terminated = true
		result.Continue = false
		result.FinalMessage = branchPrompt(target, session.LanguagePreference, c.profileFor(session))
		if result.Reply == "" {
			result.Reply = result.FinalMessage
		}
		result.Outcome = domain.OutcomeTerminal
	}
	return result
}

// generate calls the external generator under the configured timeout. A
// failure or timeout yields the fixed fallback reply; the conversation never
// stalls on the upstream.
func (c *Controller) generate(ctx context.Context, prompt string) string {
	ctx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	start := time.Now()
	reply, err := c.generator.Generate(ctx, prompt)
	c.metrics.GeneratorLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeneratorFailures.Inc()
		c.logger.Warn("generator call failed", "err", err)
		return ports.FallbackReply
	}
	return reply
}

// finish records the exchange and the outcome metric.
func (c *Controller) finish(session *domain.SessionState, utterance string, result *domain.TurnResult) *domain.TurnResult {
	session.AppendTurn(utterance, result.Reply)
	c.metrics.Turns.WithLabelValues(result.Outcome).Inc()
	c.logger.Debug("turn processed",
		"stage", result.Stage, "outcome", result.Outcome, "continue", result.Continue)
	return result
}

func (c *Controller) profileFor(session *domain.SessionState) map[string]string {
	if c.profiles == nil {
		return nil
	}
	profile, err := c.profiles.Profile(session.ID)
	if err != nil {
		c.logger.Warn("profile lookup failed", "session", session.ID, "err", err)
		return nil
	}
	return profile
}

func containsAnyToken(lowered string, words []string) bool {
	tokens := strings.FieldsFunc(lowered, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	})
	for _, token := range tokens {
		for _, word := range words {
			if !strings.ContainsRune(word, ' ') && token == word {
				return true
			}
		}
	}
	for _, word := range words {
		if strings.ContainsRune(word, ' ') && strings.Contains(lowered, word) {
			return true
		}
	}
	return false
}

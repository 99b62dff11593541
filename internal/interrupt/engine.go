// Package interrupt detects cross-cutting interruption intents, suspends and
// resumes the scripted flow, and resolves the customer's follow-up responses
// while an interruption is active.
package interrupt

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/VinayDangodra28/botbuddy/internal/flowgraph"
	"github.com/VinayDangodra28/botbuddy/internal/logging"
	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

// Detection thresholds. The compound override fires below the main threshold
// because an answer combined with a question statistically carries an
// out-of-band concern even when the keyword score alone is weak.
const (
	DefaultThreshold      = 0.4
	CompoundOverrideScore = 0.3
)

// Default jump targets when an intent omits its own.
const (
	defaultJumpStage     = "payment_followup"
	defaultEscalateStage = "complaint_handling"
	closureStage         = "closure"
)

// ResumeOverride redirects resumption for a known intent/stage combination
// where a different stage serves the customer better than where they were
// interrupted. FromStage "" matches any stage.
type ResumeOverride struct {
	Intent    string `json:"intent" yaml:"intent"`
	FromStage string `json:"from_stage,omitempty" yaml:"from_stage,omitempty"`
	Target    string `json:"target" yaml:"target"`
}

// Detection is the outcome of scanning an utterance for interruptions.
type Detection struct {
	IsInterruption bool
	Intent         string
	Confidence     float64

	// CompoundOverride is true when detection was forced by the
	// answer-plus-question heuristic rather than the score threshold.
	CompoundOverride bool
}

// HandleResult reports how an interruption was handled.
type HandleResult struct {
	Reply string

	// Stage is the session stage after handling (hard jumps change it).
	Stage string

	// ShouldResume is true when the main flow may continue after this turn;
	// false while the interruption still owns the conversation (callback
	// time collection, hard jumps, escalation).
	ShouldResume bool
}

// Engine owns interruption detection, handling, and follow-up resolution.
type Engine struct {
	graph  *flowgraph.Store
	logger *slog.Logger

	critical        map[string]bool
	resumeOverrides []ResumeOverride
	typoVariants    map[string][]string
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a structured logger for detection and handling events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCriticalIntents replaces the default critical-intent list.
func WithCriticalIntents(names ...string) Option {
	return func(e *Engine) {
		e.critical = make(map[string]bool, len(names))
		for _, name := range names {
			e.critical[name] = true
		}
	}
}

// WithResumeOverrides replaces the default intelligent-resume table.
func WithResumeOverrides(overrides []ResumeOverride) Option {
	return func(e *Engine) { e.resumeOverrides = overrides }
}

// WithTypoVariants sets the misspelling table used by follow-up matching.
func WithTypoVariants(variants map[string][]string) Option {
	return func(e *Engine) {
		if variants != nil {
			e.typoVariants = variants
		}
	}
}

// New builds an Engine over the committed graph.
func New(graph *flowgraph.Store, opts ...Option) *Engine {
	e := &Engine{
		graph:  graph,
		logger: logging.NewNop(),
		critical: map[string]bool{
			"reschedule_callback":      true,
			"complaint_or_angry":       true,
			"early_payment_decision":   true,
			"already_paid_interruption": true,
		},
		resumeOverrides: []ResumeOverride{
			{Intent: "renewal_commitment_interrupt", Target: "payment_followup"},
			{Intent: "early_payment_decision", Target: "payment_followup"},
			{Intent: "ask_about_other_policies", FromStage: "policy_confirmation", Target: "explain_policy_loss"},
			{Intent: "ambiguous_response_clarification", FromStage: "policy_confirmation", Target: "clarify_reactivation_intent"},
		},
		typoVariants: map[string][]string{
			"tomorrow": {"tommorow", "tomorow", "tomorrrow", "tommorrow"},
			"morning":  {"mornig", "morng", "moring"},
			"evening":  {"evenig", "evning", "eveng"},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var (
	responseWords = []string{"yes", "no", "ok", "okay", "sure"}
	questionWords = []string{"where", "how", "why", "what", "who", "when"}
)

// Detect scans the utterance for the interruptible intents applicable to the
// stage. The best weighted keyword score wins; detection fires at or above
// the threshold, or via the compound-response override when the utterance
// pairs an answer token with a question token at a lower score.
func (e *Engine) Detect(utterance, stageID string, threshold float64) Detection {
	lowered := strings.TrimSpace(strings.ToLower(utterance))
	if lowered == "" {
		return Detection{}
	}

	intents := e.graph.Intents()
	names := make([]string, 0, len(intents))
	for name := range intents {
		names = append(names, name)
	}
	sort.Strings(names)

	best := ""
	bestScore := 0.0
	for _, name := range names {
		intent := intents[name]
		if !intent.AppliesTo(stageID) {
			continue
		}
		score := keywordConfidence(lowered, intent.Keywords) * intent.Priority.Weight()
		if score > bestScore {
			bestScore = score
			best = name
		}
	}

	d := Detection{
		Intent:         best,
		Confidence:     bestScore,
		IsInterruption: best != "" && bestScore >= threshold,
	}
	if !d.IsInterruption && best != "" && bestScore >= CompoundOverrideScore &&
		hasAnyWord(lowered, responseWords) && hasAnyWord(lowered, questionWords) {
		d.IsInterruption = true
		d.CompoundOverride = true
	}
	if d.IsInterruption {
		e.logger.Debug("interruption detected",
			"intent", d.Intent, "confidence", d.Confidence, "stage", stageID, "compound", d.CompoundOverride)
	}
	return d
}

// keywordConfidence scores the fraction of keywords matched, boosted when a
// matched keyword covers a large share of the utterance, with a floor of 0.5
// for any decent single-keyword hit.
func keywordConfidence(lowered string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	matched := 0
	bestCoverage := 0.0
	exact := false
	for _, keyword := range keywords {
		kw := strings.ToLower(keyword)
		if kw == "" || !strings.Contains(lowered, kw) {
			continue
		}
		matched++
		if coverage := float64(len(kw)) / float64(len(lowered)); coverage > bestCoverage {
			bestCoverage = coverage
		}
		if kw == lowered {
			exact = true
		}
	}
	if matched == 0 {
		return 0
	}

	confidence := float64(matched) / float64(len(keywords))
	switch {
	case bestCoverage > 0.3:
		confidence += 0.4
	case bestCoverage > 0.15:
		confidence += 0.2
	}
	if exact {
		confidence += 0.3
	}
	if bestCoverage > 0.1 && confidence < 0.5 {
		confidence = 0.5
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// Handle executes the detected intent's action against the session. Actions
// that collect a follow-up (callback scheduling, acknowledgements with
// expected follow-ups) leave the interruption context active; the rest
// resolve within this turn.
func (e *Engine) Handle(intentName, utterance, stageID string, session *domain.SessionState) HandleResult {
	intent := e.graph.Intent(intentName)
	if intent == nil {
		return HandleResult{
			Reply:        "I understand. Let me help you with that.",
			Stage:        stageID,
			ShouldResume: true,
		}
	}

	reply := intent.Response
	if reply == "" {
		reply = "I understand."
	}

	switch intent.Action {
	case domain.InterruptRepeatLast:
		return HandleResult{
			Reply:        e.repeatLastReply(session),
			Stage:        stageID,
			ShouldResume: true,
		}

	case domain.InterruptScheduleCallback:
		session.PushInterruption(intentName, utterance)
		session.AwaitingCallbackTime = true
		return HandleResult{Reply: reply, Stage: stageID, ShouldResume: false}

	case domain.InterruptJumpToStage:
		session.ClearInterruption()
		target := intent.TargetStage
		if target == "" || e.graph.GetBranch(target) == nil {
			target = defaultJumpStage
		}
		session.CurrentStage = target
		return HandleResult{Reply: reply, Stage: target, ShouldResume: false}

	case domain.InterruptSwitchLanguage:
		if lang := detectLanguage(utterance); lang != "" {
			session.LanguagePreference = lang
		}
		return HandleResult{
			Reply:        reply + " Now, about your policy renewal...",
			Stage:        stageID,
			ShouldResume: true,
		}

	case domain.InterruptEscalate:
		session.ClearInterruption()
		target := intent.TargetStage
		if target == "" {
			target = defaultEscalateStage
		}
		session.CurrentStage = target
		return HandleResult{Reply: reply, Stage: target, ShouldResume: false}

	case domain.InterruptNoteOnly:
		session.SupervisorRequested = true
		if len(intent.ExpectedFollowUps) > 0 {
			session.PushInterruption(intentName, utterance)
		}
		return HandleResult{Reply: reply, Stage: stageID, ShouldResume: true}

	default: // acknowledge and redirect
		session.PushInterruption(intentName, utterance)
		return HandleResult{Reply: reply, Stage: stageID, ShouldResume: true}
	}
}

// repeatLastReply re-emits the last agent message, stripped of any embedded
// structured payload.
func (e *Engine) repeatLastReply(session *domain.SessionState) string {
	last := session.LastAgentUtterance()
	if last == "" {
		return "I was asking about your life insurance policy renewal. Shall we continue?"
	}
	if idx := strings.Index(last, "```json"); idx >= 0 {
		last = strings.TrimSpace(last[:idx])
	}
	return "Sure, let me repeat that. " + last
}

// IsCritical reports whether the intent, once triggered, ends the turn as-is
// with no resumption bookkeeping.
func (e *Engine) IsCritical(intentName string) bool {
	if e.graph.Intent(intentName) == nil {
		return false
	}
	return e.critical[intentName]
}

// IntelligentResumeStage picks the stage to resume after the active
// interruption. Known intent/stage combinations override the plain
// original-stage restoration; the override must name an existing branch.
func (e *Engine) IntelligentResumeStage(session *domain.SessionState) string {
	ctx := session.Interruption
	if ctx == nil {
		return session.CurrentStage
	}
	for _, o := range e.resumeOverrides {
		if o.Intent != ctx.IntentName {
			continue
		}
		if o.FromStage != "" && o.FromStage != ctx.OriginalStage {
			continue
		}
		if e.graph.GetBranch(o.Target) != nil {
			return o.Target
		}
	}
	return ctx.OriginalStage
}

// detectLanguage finds a requested language by keyword, "" if none.
func detectLanguage(utterance string) string {
	lowered := strings.ToLower(utterance)
	for keyword, name := range map[string]string{
		"hindi":    "Hindi",
		"marathi":  "Marathi",
		"gujarati": "Gujarati",
		"english":  "English",
	} {
		if strings.Contains(lowered, keyword) {
			return name
		}
	}
	return ""
}

func hasAnyWord(lowered string, words []string) bool {
	tokens := strings.FieldsFunc(lowered, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	})
	for _, token := range tokens {
		for _, word := range words {
			if token == word {
				return true
			}
		}
	}
	return false
}

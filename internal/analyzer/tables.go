// Package analyzer matches customer utterances against a branch's expected
// responses and, when nothing on the current branch fits, searches the whole
// graph for a redirect candidate. The matching policy lives in rule tables,
// not code, so deployments can swap vocabularies without touching the
// algorithm.
package analyzer

// SpecialCase maps a stage-specific phrasing to the response type it should
// count as. These cover utterances the literal keyword scan gets wrong, like
// "no questions" reading as a negative when it actually means "go on".
type SpecialCase struct {
	Stage        string   `json:"stage" yaml:"stage"`
	Phrases      []string `json:"phrases" yaml:"phrases"`
	ResponseType string   `json:"response_type" yaml:"response_type"`
}

// ContextMapping short-circuits bare affirmatives ("sure", "okay") to a
// stage-specific best-guess branch, since such utterances carry no topical
// keyword signal at all.
type ContextMapping struct {
	Branch     string  `json:"branch" yaml:"branch"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// BoostRule multiplies a redirect candidate's score when an
// especially-diagnostic phrase is present. ExcludePhrases suppress the boost
// when the surrounding context points elsewhere.
type BoostRule struct {
	Branch         string   `json:"branch" yaml:"branch"`
	Phrases        []string `json:"phrases" yaml:"phrases"`
	ExcludePhrases []string `json:"exclude_phrases,omitempty" yaml:"exclude_phrases,omitempty"`
	Multiplier     float64  `json:"multiplier" yaml:"multiplier"`
}

// Tables is the full data-driven matching policy.
type Tables struct {
	// NegationPrefixes suppress a keyword hit when one of them appears
	// anywhere before the keyword. "policy bond" inside "i don't have the
	// policy bond" is a negation, not a match.
	NegationPrefixes []string `json:"negation_prefixes" yaml:"negation_prefixes"`

	// GenericPatterns back keyword-less response types ("yes"/"no" rules
	// that rely on the built-in affirmative/negative vocabularies).
	GenericPatterns map[string][]string `json:"generic_patterns" yaml:"generic_patterns"`

	SpecialCases []SpecialCase `json:"special_cases,omitempty" yaml:"special_cases,omitempty"`

	// GenericAffirmatives/GenericNegatives gate the redirect context map.
	GenericAffirmatives []string `json:"generic_affirmatives" yaml:"generic_affirmatives"`
	GenericNegatives    []string `json:"generic_negatives" yaml:"generic_negatives"`

	// ContextMappings resolve bare affirmatives per stage.
	ContextMappings map[string]ContextMapping `json:"context_mappings,omitempty" yaml:"context_mappings,omitempty"`

	// NegativeFallbackBranch receives bare negatives ("nah", "not really")
	// with NegativeFallbackScore confidence.
	NegativeFallbackBranch string  `json:"negative_fallback_branch" yaml:"negative_fallback_branch"`
	NegativeFallbackScore  float64 `json:"negative_fallback_score" yaml:"negative_fallback_score"`

	// RedirectKeywords associates each redirectable branch with the phrases
	// that suggest it. Scores divide matches by list size, so longer lists
	// demand more evidence.
	RedirectKeywords map[string][]string `json:"redirect_keywords" yaml:"redirect_keywords"`

	// TypoVariants accept common misspellings as hits for their canonical
	// keyword.
	TypoVariants map[string][]string `json:"typo_variants,omitempty" yaml:"typo_variants,omitempty"`

	BoostRules []BoostRule `json:"boost_rules,omitempty" yaml:"boost_rules,omitempty"`
}

// DefaultTables returns the matching policy tuned for insurance renewal
// calls.
func DefaultTables() *Tables {
	return &Tables{
		NegationPrefixes: []string{
			"no ",
			"don't ",
			"dont ",
			"not ",
			"no i don't ",
			"no i dont ",
			"i don't ",
			"i dont ",
			"i don't have ",
			"i dont have ",
			"no i don't have ",
			"no i dont have ",
		},
		GenericPatterns: map[string][]string{
			"yes": {
				"yes", "ok", "okay", "fine", "sure", "correct", "right",
				"speaking", "this is", "i am", "yeah", "yep", "alright",
				"absolutely", "go ahead", "proceed", "continue", "right time",
			},
			"no": {
				"no", "not", "nope", "wrong", "incorrect", "not me",
				"not here", "not available", "not now", "later", "busy",
				"not good time", "call back",
			},
		},
		SpecialCases: []SpecialCase{
			{
				Stage: "policy_status_explanation",
				Phrases: []string{
					"no questions", "dont have questions", "don't have questions",
					"no i dont have questions", "no i don't have questions",
					"i dont have questions", "i don't have questions",
				},
				ResponseType: "wants_to_proceed",
			},
		},
		GenericAffirmatives: []string{
			"sure", "okay", "alright", "fine", "proceed", "continue", "go ahead",
		},
		GenericNegatives: []string{
			"nah", "nope", "not really", "not now", "maybe not",
		},
		ContextMappings: map[string]ContextMapping{
			"policy_status_explanation": {Branch: "explain_policy_loss", Confidence: 0.8},
			"explain_policy_loss":       {Branch: "payment_followup", Confidence: 0.8},
			"policy_confirmation":       {Branch: "policy_status_explanation", Confidence: 0.8},
			"general_help":              {Branch: "policy_confirmation", Confidence: 0.7},
			"rebuttals":                 {Branch: "payment_followup", Confidence: 0.7},
		},
		NegativeFallbackBranch: "reschedule_callback",
		NegativeFallbackScore:  0.6,
		RedirectKeywords: map[string][]string{
			"payment_followup":           {"pay", "payment", "how to pay", "money", "card", "online", "upi", "cheque", "cost", "amount"},
			"payment_inquiry":            {"can't pay", "financial problem", "difficult", "expensive", "broke", "budget", "tight"},
			"payment_already_made":       {"already paid", "paid", "done", "completed", "cleared", "settled"},
			"policy_confirmation":        {"policy details", "what policy", "my policy", "benefits", "coverage", "details"},
			"explain_policy_loss":        {"what happens", "benefits", "importance", "why", "explain", "understand"},
			"financial_problem_handling": {"money problem", "financial", "afford", "crisis", "expensive"},
			"rebuttals":                  {"not interested", "don't want", "refuse", "won't pay", "cancel"},
			"reschedule_callback":        {"can we speak", "speak tomorrow", "speak later", "call later", "not now", "busy", "different time", "another time", "reschedule", "not good time"},
			"schedule_callback":          {"tomorrow", "next week", "evening", "morning", "weekend"},
			"scenario_market_high":       {"market", "volatile", "risky", "unstable"},
			"scenario_emergency_needs":   {"emergency", "medical", "urgent", "hospital"},
			"scenario_better_alternatives": {"mutual fund", "fd", "better option", "alternative"},
			"scenario_low_returns":       {"poor returns", "low returns", "loss", "not profitable"},
			"general_help":               {"help", "confused", "don't understand", "explain", "clarify"},
			"policy_bond_help":           {"policy document", "bond", "papers", "certificate"},
		},
		TypoVariants: map[string][]string{
			"tomorrow":       {"tommorow", "tomorow", "tomorrrow", "tommorrow"},
			"evening":        {"evenig", "evning", "eveng"},
			"morning":        {"mornig", "morng", "moring"},
			"speak tomorrow": {"speak tommorow", "speak tomorow", "talk tomorrow", "talk tommorow"},
			"can we speak":   {"can we talk", "could we speak", "could we talk"},
			"call back":      {"callback", "call-back", "call me back", "call later"},
			"different time": {"other time", "another time", "diff time"},
		},
		BoostRules: []BoostRule{
			{
				Branch:     "reschedule_callback",
				Phrases:    []string{"can we speak", "speak tomorrow", "not good time"},
				Multiplier: 1.5,
			},
			{
				Branch:         "schedule_callback",
				Phrases:        []string{"tomorrow"},
				ExcludePhrases: []string{"can we", "speak", "not now", "busy"},
				Multiplier:     1.2,
			},
		},
	}
}

// PhraseHit reports whether the phrase or any of its known typo variants
// appears in the (already lowercased) utterance.
func (t *Tables) PhraseHit(utterance, phrase string) bool {
	if containsPhrase(utterance, phrase) {
		return true
	}
	for _, variant := range t.TypoVariants[phrase] {
		if containsPhrase(utterance, variant) {
			return true
		}
	}
	return false
}

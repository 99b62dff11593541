package analyzer

import "strings"

// Redirect confidence thresholds applied by callers: below MinRedirectScore
// a candidate is unusable; at or above ConfidentRedirectScore the controller
// transitions without proposing a new branch.
const (
	MinRedirectScore       = 0.1
	ConfidentRedirectScore = 0.2
)

// FindRedirectCandidate searches the whole graph for a branch likely able to
// handle an utterance that matched nothing on the current stage. It returns
// the best candidate and its confidence, or ("", 0) when nothing plausible
// exists. The caller applies the score thresholds.
func (a *Analyzer) FindRedirectCandidate(utterance, currentStageID string) (string, float64) {
	lowered := strings.ToLower(utterance)

	// Bare affirmatives carry no topical signal; resolve them from the
	// stage-specific context map instead of the keyword tables.
	if containsAnyWord(lowered, a.tables.GenericAffirmatives) {
		if mapping, ok := a.tables.ContextMappings[currentStageID]; ok {
			if a.graph.GetBranch(mapping.Branch) != nil {
				a.logger.Debug("context-mapped redirect", "stage", currentStageID, "branch", mapping.Branch)
				return mapping.Branch, mapping.Confidence
			}
		}
	}

	// Bare negatives usually mean "not now": steer to rescheduling.
	if containsAnyWord(lowered, a.tables.GenericNegatives) {
		if a.graph.GetBranch(a.tables.NegativeFallbackBranch) != nil {
			return a.tables.NegativeFallbackBranch, a.tables.NegativeFallbackScore
		}
	}

	best := ""
	bestScore := 0.0
	for _, branchID := range a.graph.ListBranches() {
		if branchID == currentStageID {
			continue
		}
		keywords := a.tables.RedirectKeywords[branchID]
		if len(keywords) == 0 {
			continue
		}

		matches := 0
		for _, keyword := range keywords {
			if a.tables.PhraseHit(lowered, keyword) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}

		score := float64(matches) / float64(len(keywords))
		score *= a.boostFor(branchID, lowered)
		if score > bestScore {
			bestScore = score
			best = branchID
		}
	}

	if bestScore < MinRedirectScore {
		return "", 0
	}
	a.logger.Debug("redirect candidate", "stage", currentStageID, "branch", best, "score", bestScore)
	return best, bestScore
}

// boostFor returns the priority multiplier for especially-diagnostic phrase
// matches, 1.0 when no boost rule fires.
func (a *Analyzer) boostFor(branchID, lowered string) float64 {
	for _, rule := range a.tables.BoostRules {
		if rule.Branch != branchID {
			continue
		}
		hit := false
		for _, phrase := range rule.Phrases {
			if a.tables.PhraseHit(lowered, phrase) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		excluded := false
		for _, phrase := range rule.ExcludePhrases {
			if strings.Contains(lowered, phrase) {
				excluded = true
				break
			}
		}
		if !excluded {
			return rule.Multiplier
		}
	}
	return 1.0
}

func containsAnyWord(lowered string, phrases []string) bool {
	for _, phrase := range phrases {
		if containsPhrase(lowered, phrase) {
			return true
		}
	}
	return false
}

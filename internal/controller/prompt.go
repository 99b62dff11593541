package controller

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

// RenderTemplate substitutes {field} placeholders from the customer profile.
// Unknown placeholders are left as-is.
func RenderTemplate(template string, profile map[string]string) string {
	if template == "" {
		return ""
	}
	for key, value := range profile {
		template = strings.ReplaceAll(template, "{"+key+"}", value)
	}
	return template
}

// StripMetadata removes the fenced JSON block a generated reply may carry,
// returning only the text meant for the customer.
func StripMetadata(reply string) string {
	if idx := strings.Index(reply, "```json"); idx >= 0 {
		reply = reply[:idx]
	}
	return strings.TrimSpace(reply)
}

var metadataPattern = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// GeneratedMetadata is the structured payload embedded in a generated reply.
type GeneratedMetadata struct {
	Intent string `json:"intent"`
	Update struct {
		ConversationStage  string `json:"conversation_stage"`
		LanguagePreference string `json:"language_preference"`
	} `json:"update"`
	BranchSuggestion *BranchSuggestion `json:"branch_suggestion,omitempty"`
}

// BranchSuggestion is a generator-proposed graph mutation. It is only ever
// staged through the suggestion log, never applied directly.
type BranchSuggestion struct {
	Action    string                  `json:"action"`
	Reasoning string                  `json:"reasoning,omitempty"`
	Details   BranchSuggestionDetails `json:"suggestion_details"`
}

// BranchSuggestionDetails carries the proposed branch definition.
type BranchSuggestionDetails struct {
	BranchName        string                         `json:"branch_name"`
	Intent            string                         `json:"intent"`
	Prompt            string                         `json:"bot_prompt"`
	ExpectedResponses map[string]domain.ResponseRule `json:"expected_user_responses,omitempty"`
	CalledWhen        []domain.CalledWhen            `json:"called_when,omitempty"`
}

// ExtractMetadata parses the fenced JSON block out of a generated reply.
// A missing or malformed block is not an error; the reply simply carries no
// metadata.
func ExtractMetadata(reply string) *GeneratedMetadata {
	m := metadataPattern.FindStringSubmatch(reply)
	if m == nil {
		return nil
	}
	var meta GeneratedMetadata
	if err := json.Unmarshal([]byte(m[1]), &meta); err != nil {
		return nil
	}
	return &meta
}

// branchPrompt resolves the branch's script for the session language and
// renders profile fields into it.
func branchPrompt(branch *domain.Branch, language string, profile map[string]string) string {
	prompt := branch.Prompt
	if language != "" && language != "English" {
		if override, ok := branch.PromptOverrides[language]; ok && override != "" {
			prompt = override
		}
	}
	return RenderTemplate(prompt, profile)
}

// historyExcerpt formats the last few exchanges for prompt context, with
// embedded metadata stripped from agent messages.
func historyExcerpt(history []domain.ChatTurn, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	var lines []string
	for _, turn := range history {
		if turn.User != "" {
			lines = append(lines, "Customer: "+turn.User)
		}
		if turn.Agent != "" {
			lines = append(lines, "Agent: "+StripMetadata(turn.Agent))
		}
	}
	if len(lines) == 0 {
		return "No previous conversation"
	}
	return strings.Join(lines, "\n")
}

// BuildMasterPrompt assembles the scripted-agent prompt for a stage whose
// matched rule has no scripted reply.
func BuildMasterPrompt(utterance string, profile map[string]string, session *domain.SessionState, branch *domain.Branch, nextStage string, pendingSuggestions int) string {
	expected := "Any response"
	if len(branch.ExpectedResponses) > 0 {
		types := make([]string, 0, len(branch.ExpectedResponses))
		for rt := range branch.ExpectedResponses {
			types = append(types, rt)
		}
		expected = strings.Join(types, ", ")
	}

	suggestionsNote := ""
	if pendingSuggestions > 0 {
		suggestionsNote = fmt.Sprintf("\nThere are %d pending flow improvement suggestions awaiting review; do not apply them yourself.\n", pendingSuggestions)
	}
	if nextStage == "" {
		nextStage = session.CurrentStage
	}

	return fmt.Sprintf(`You are a female insurance renewal agent. Follow the conversation script exactly.

STRICT INSTRUCTIONS:
1. Use at most 35 simple English words.
2. Always end with a question to keep the conversation flowing.
3. If the customer requests Hindi, Marathi or Gujarati, switch immediately.
4. Be empathetic but persistent about the premium payment.
5. Do not deviate from the script or improvise.

SCRIPT FOR THIS STAGE:
Current stage: %s
Script template: %q

CUSTOMER INFORMATION:
- Name: %s
- Policy: %s (#%s)
- Outstanding amount: %s
- Due date: %s
- Language: %s

CONVERSATION HISTORY:
%s

CUSTOMER'S CURRENT INPUT:
%q

EXPECTED RESPONSE TYPES FOR THIS STAGE:
%s%s
Respond exactly as the script requires, then append:

`+"```json"+`
{
  "intent": %q,
  "update": {
    "conversation_stage": %q,
    "language_preference": %q
  }
}
`+"```",
		session.CurrentStage,
		branchPrompt(branch, session.LanguagePreference, profile),
		profileField(profile, "customer_name", "Sir/Madam"),
		profileField(profile, "product_name", "Life Insurance"),
		profileField(profile, "policy_number", "N/A"),
		profileField(profile, "outstanding_amount", "N/A"),
		profileField(profile, "premium_due_date", "N/A"),
		session.LanguagePreference,
		historyExcerpt(session.ChatHistory, 3),
		utterance,
		expected, suggestionsNote,
		branch.Intent,
		nextStage,
		session.LanguagePreference,
	)
}

// BuildTransitionPrompt asks the generator to bridge from an unexpected
// utterance into an existing branch that can handle it.
func BuildTransitionPrompt(utterance, currentStage string, target *domain.Branch, confidence float64, profile map[string]string, language string) string {
	return fmt.Sprintf(`You are a female insurance renewal agent. The customer gave an unexpected response, but an existing conversation branch can handle their concern.

CONTEXT:
- Current stage: %s
- Customer input: %q (unexpected)
- Redirecting to branch: %s
- Target branch intent: %s
- Target branch script: %q
- Match confidence: %.2f

TASK: in at most 35 words, acknowledge the customer's input and lead naturally into the target branch topic, ending with a question.

Then append:

`+"```json"+`
{
  "intent": %q,
  "update": {
    "conversation_stage": %q,
    "language_preference": %q
  }
}
`+"```",
		currentStage, utterance, target.ID, target.Intent,
		branchPrompt(target, language, profile), confidence,
		target.Intent, target.ID, language,
	)
}

// BuildSuggestionPrompt asks the generator to handle an utterance nothing in
// the graph covers, and to propose a new branch for similar cases.
func BuildSuggestionPrompt(utterance string, branch *domain.Branch, available []string, pending []domain.SuggestionOperation, language string) string {
	expected, _ := json.MarshalIndent(branch.ExpectedResponses, "", "  ")

	pendingNote := ""
	if len(pending) > 0 {
		names := make([]string, 0, len(pending))
		for _, op := range pending {
			names = append(names, fmt.Sprintf("%s %s", op.Type, op.BranchID))
		}
		pendingNote = "\nPENDING SUGGESTIONS (context only): " + strings.Join(names, ", ") + "\n"
	}

	return fmt.Sprintf(`You are a female insurance renewal agent. The customer gave a response that matches no expected pattern and no existing branch.

CONTEXT:
- Current stage: %s
- Customer input: %q (unexpected)
- Expected responses for this stage: %s
- Available branches (the ONLY valid "next" targets): %s%s

TASK:
1. Respond naturally to the customer in at most 35 words, ending with a question.
2. Propose one new branch to handle similar responses in the future. Use only available branches for "next" values.

Then append:

`+"```json"+`
{
  "intent": "handle_unexpected_response",
  "update": {
    "conversation_stage": %q,
    "language_preference": %q
  },
  "branch_suggestion": {
    "action": "create",
    "reasoning": "why this branch helps",
    "suggestion_details": {
      "branch_name": "%s_handled",
      "intent": "handle_unexpected_from_%s",
      "bot_prompt": "how to respond to similar cases",
      "expected_user_responses": {
        "positive": {"next": "existing_branch", "response": "follow-up"},
        "negative": {"next": "existing_branch", "response": "follow-up"}
      },
      "called_when": [{"previous_intent": %q, "previous_response": "unexpected_response"}]
    }
  }
}
`+"```",
		branch.ID, utterance, string(expected), strings.Join(available, ", "), pendingNote,
		branch.ID, language, branch.ID, branch.ID, branch.Intent,
	)
}

// detectLanguagePreference spots an explicit language request in the
// utterance, "" when none.
func detectLanguagePreference(utterance string) string {
	lowered := strings.ToLower(utterance)
	switch {
	case strings.Contains(lowered, "hindi"):
		return "Hindi"
	case strings.Contains(lowered, "marathi"):
		return "Marathi"
	case strings.Contains(lowered, "gujarati"):
		return "Gujarati"
	}
	return ""
}

func profileField(profile map[string]string, key, fallback string) string {
	if v, ok := profile[key]; ok && v != "" {
		return v
	}
	return fallback
}

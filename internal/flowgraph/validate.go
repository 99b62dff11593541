package flowgraph

import (
	"fmt"
	"sort"

	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

// ValidateBranch checks one committed branch for structural problems: a
// branch must carry an intent and a prompt, and every transition must point
// at an existing branch.
func (s *Store) ValidateBranch(id string) domain.Validation {
	g := s.snapshot()
	b := g.branches[id]
	if b == nil {
		return domain.Validation{Errors: []string{fmt.Sprintf("branch %q does not exist", id)}}
	}
	errs := validateBranch(g, b)
	return domain.Validation{Valid: len(errs) == 0, Errors: errs}
}

// ValidateAll checks every committed branch and returns the problems keyed
// by branch id. An empty map means the graph is structurally sound.
func (s *Store) ValidateAll() map[string][]string {
	g := s.snapshot()
	out := make(map[string][]string)
	for _, id := range sortedIDs(g.branches) {
		if errs := validateBranch(g, g.branches[id]); len(errs) > 0 {
			out[id] = errs
		}
	}
	return out
}

func validateBranch(g *graph, b *domain.Branch) []string {
	var errs []string
	if b.Intent == "" {
		errs = append(errs, "missing intent")
	}
	if b.Prompt == "" {
		errs = append(errs, "missing prompt")
	}
	keys := make([]string, 0, len(b.ExpectedResponses))
	for key := range b.ExpectedResponses {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		rule := b.ExpectedResponses[key]
		if rule.Next != "" && g.branches[rule.Next] == nil {
			errs = append(errs, fmt.Sprintf("response %q points at missing branch %q", key, rule.Next))
		}
	}
	return errs
}

// AuditReport summarizes graph-wide health beyond per-branch validity.
type AuditReport struct {
	// Unreachable lists branches no transition path from the entry branch
	// can reach.
	Unreachable []string `json:"unreachable,omitempty"`

	// DeadEnds lists non-terminal branches with no outgoing transitions:
	// the conversation can stall there with no scripted way forward.
	DeadEnds []string `json:"dead_ends,omitempty"`

	// NoTerminalPath lists branches from which no terminal branch is
	// reachable.
	NoTerminalPath []string `json:"no_terminal_path,omitempty"`

	// InCycle lists branches on a transition cycle. Cycles are legal
	// (retry loops are common) but worth surfacing.
	InCycle []string `json:"in_cycle,omitempty"`
}

// Clean reports whether the audit found nothing to flag.
func (r *AuditReport) Clean() bool {
	return len(r.Unreachable) == 0 && len(r.DeadEnds) == 0 && len(r.NoTerminalPath) == 0 && len(r.InCycle) == 0
}

// Audit walks the committed graph from the entry branch and reports
// reachability problems, stalls, and cycles.
func (s *Store) Audit() *AuditReport {
	g := s.snapshot()
	report := &AuditReport{}

	adj := make(map[string][]string, len(g.branches))
	for id, b := range g.branches {
		seen := make(map[string]bool)
		for _, rule := range b.ExpectedResponses {
			if rule.Next != "" && g.branches[rule.Next] != nil && !seen[rule.Next] {
				adj[id] = append(adj[id], rule.Next)
				seen[rule.Next] = true
			}
		}
		sort.Strings(adj[id])
	}

	reachable := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		if reachable[id] || g.branches[id] == nil {
			return
		}
		reachable[id] = true
		for _, next := range adj[id] {
			walk(next)
		}
	}
	walk(g.entry)

	// terminalReach holds every branch with a path to a terminal branch,
	// computed by walking the reversed edges from each terminal.
	rev := make(map[string][]string)
	for id, nexts := range adj {
		for _, next := range nexts {
			rev[next] = append(rev[next], id)
		}
	}
	terminalReach := make(map[string]bool)
	var walkBack func(id string)
	walkBack = func(id string) {
		if terminalReach[id] {
			return
		}
		terminalReach[id] = true
		for _, prev := range rev[id] {
			walkBack(prev)
		}
	}
	for id, b := range g.branches {
		if b.IsTerminal() {
			walkBack(id)
		}
	}

	inCycle := cycleMembers(g, adj)

	for _, id := range sortedIDs(g.branches) {
		b := g.branches[id]
		if !reachable[id] {
			report.Unreachable = append(report.Unreachable, id)
		}
		if !b.IsTerminal() && len(adj[id]) == 0 {
			report.DeadEnds = append(report.DeadEnds, id)
		}
		if !terminalReach[id] {
			report.NoTerminalPath = append(report.NoTerminalPath, id)
		}
		if inCycle[id] {
			report.InCycle = append(report.InCycle, id)
		}
	}
	return report
}

// cycleMembers returns the branches on at least one transition cycle:
// members of a strongly connected component of size > 1, plus self-loops.
func cycleMembers(g *graph, adj map[string][]string) map[string]bool {
	index := make(map[string]int, len(g.branches))
	lowlink := make(map[string]int, len(g.branches))
	onStack := make(map[string]bool, len(g.branches))
	var stack []string
	next := 0

	members := make(map[string]bool)

	var strongconnect func(id string)
	strongconnect = func(id string) {
		index[id] = next
		lowlink[id] = next
		next++
		stack = append(stack, id)
		onStack[id] = true

		for _, succ := range adj[id] {
			if _, seen := index[succ]; !seen {
				strongconnect(succ)
				if lowlink[succ] < lowlink[id] {
					lowlink[id] = lowlink[succ]
				}
			} else if onStack[succ] && index[succ] < lowlink[id] {
				lowlink[id] = index[succ]
			}
		}

		if lowlink[id] == index[id] {
			var component []string
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[top] = false
				component = append(component, top)
				if top == id {
					break
				}
			}
			if len(component) > 1 {
				for _, member := range component {
					members[member] = true
				}
			}
		}
	}

	for _, id := range sortedIDs(g.branches) {
		if _, seen := index[id]; !seen {
			strongconnect(id)
		}
	}

	for id, nexts := range adj {
		for _, succ := range nexts {
			if succ == id {
				members[id] = true
			}
		}
	}
	return members
}

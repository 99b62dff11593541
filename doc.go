// Package botbuddy runs scripted, interruptible phone conversations from a
// declarative flow definition.
//
// A flow is a graph of branches. Each branch carries the agent's script and a
// set of expected customer responses that route to the next branch. When the
// customer says something off-script, the engine either handles it as an
// interruption (answering a side question and steering back to where the call
// was), redirects to a better-matching branch, or generates a contextual
// reply and records a branch suggestion for a human to review later.
//
// The Engine type wires the pieces together. Transports live under
// pkg/adapters: a REST API, an MCP server, and pluggable session stores
// (in-memory, file, Redis).
//
//	src := &file.Source{Path: "flow.yaml"}
//	eng, err := botbuddy.New(src,
//		botbuddy.WithProfileProvider(ports.StaticProfile{"customer_name": "Pratik"}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	opening, _ := eng.Open(ctx, "call-42")
//	reply, _ := eng.Converse(ctx, "call-42", "yes, speaking")
package botbuddy

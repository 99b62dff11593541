// Package domain contains the core data structures of the conversation
// engine: dialogue branches, interruptible intents, staged graph mutations
// (suggestions), and per-session state. It has no dependencies on the
// runtime packages, so adapters and hosts can share these types freely.
package domain

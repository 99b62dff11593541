// Package ports defines the boundary interfaces between the conversation
// engine and its collaborators: the generative backend, customer profile
// storage, session persistence, and graph document sources.
package ports

// Package core provides the foundational domain types and collaborator
// interfaces used by MemoryMesh. It defines the core abstractions for:
//
//   - Messages (raw conversational input supplied by callers)
//   - Namespaces (caller scope maps gating strategy eligibility and search)
//   - Strategies (configured rules for how one kind of memory is derived)
//   - Decisions & results (the reconciliation verdicts and their outcomes)
//   - Pluggable stores for documents plus container/access collaborators
//
// The package intentionally keeps implementation concerns (persistence,
// inference transports, pipeline orchestration) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core

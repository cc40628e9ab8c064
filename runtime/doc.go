// Package runtime owns the lifecycle of one agent: it loads configuration,
// runs iterations through the attached workflow or the default reasoning
// loop until the goal is met or a fatal error occurs, and exposes
// synchronous accessors for status, pending question and artifact awaiting
// approval. Every externally relevant state transition is announced on the
// message bus.
package runtime

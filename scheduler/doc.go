// Package scheduler starts agents in dependency order. Connections form a
// directed acyclic graph over agent identities; agents without predecessors
// start immediately, every other agent starts once all of its predecessors
// have completed. Completion is observed on the message bus, so the
// scheduler works the same whether agents finish organically or their
// completions are replayed.
package scheduler

// Package store provides the durable key/value capability agents use to
// persist produced artifacts. Keys live in namespaced collections (game
// design documents, asset specs, generated code, workflow definitions and
// agent configs). No transactional semantics are offered; last write wins.
package store

// Package bus implements the in-memory message bus that routes messages
// between agents and ad-hoc observer clients. Messages addressed to an agent
// that is not currently connected are buffered in per-agent FIFO queues and
// replayed, in publish order, when that agent registers. Broadcast messages
// reach every connected client best-effort. Process-local subscribers see
// every published message regardless of delivery outcome.
//
// The bus is intentionally volatile: buffers do not survive process restarts
// and delivery is at-least-once, so consumers must be idempotent.
package bus

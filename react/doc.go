// Package react implements the bounded plan-act-observe reasoning loop.
// Each round asks the language model for a step in the fixed textual
// protocol (Thought / Action / Action Input), executes the named tool and
// feeds the observation back into the conversation until the model emits
// FINISH or the iteration budget runs out. The loop is used directly by
// agents without a workflow and as the react node kind inside workflows.
package react

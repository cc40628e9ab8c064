// Package model defines the language-model capability consumed by the
// reasoning loop: an ordered chat exchange returning text plus token usage.
// Provider adapters live in subpackages (openai, anthropic); ScriptedModel
// is the deterministic double used in tests and examples.
package model

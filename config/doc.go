// Package config loads declarative pipeline definitions. A pipeline file
// describes the agents, their dependency connections and optional workflow
// graphs in YAML; Apply materializes the definition onto an Engine.
//
// Example definition:
//
//	name: game-studio
//	mode: automatic
//	agents:
//	  - id: designer
//	    scenario: Design a small puzzle game.
//	  - id: coder
//	    scenario: Implement the design.
//	    collection: code
//	connections:
//	  - from: designer
//	    to: coder
package config

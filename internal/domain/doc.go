// Package domain defines the core domain types shared across the backend.
//
// Concept-oriented files (user.go, thread.go, events.go, errors.go, stats.go)
// hold plain types and sentinel errors. No implementation code lives here;
// interfaces stay on the consumer side to prevent circular imports.
package domain

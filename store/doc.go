// Package store contains concrete DocumentStore implementations. The store
// interface and document types reside in the core package. Import
// github.com/hupe1980/memorymesh/core and depend on core.DocumentStore in
// your code; select an implementation (in-memory below, redis or chromem in
// the subpackages) at wiring time.
//
// Rationale: keeps domain contracts centralized while allowing pluggable
// backends to be added without introducing dependency cycles.
package store

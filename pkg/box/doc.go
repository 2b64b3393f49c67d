// Package box aggregates the per-section package stores behind a single package repository.
//
// Each known section owns a key namespace "packages/<section>" in the shared store, and
// a directory "<box>/<section>" on disk. Packages are persisted as records gathering
// their descriptions at every pool location.
package box

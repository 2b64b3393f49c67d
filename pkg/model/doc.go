// Package model describes the base objects manipulated by pacbox.
//
// The object model for pacbox is composed of:
//
//  Sections:
//    A section is a partition of the box, identified by a branch, a repository and an architecture.
//    Every package belongs to exactly one section.
//
//  Packages:
//    A package is identified by its section and its name. It points to a package artifact
//    (and optionally its signature) stored in a pool.
//
//  Pool locations:
//    The placement category of a package artifact (automated, overlay, manual).
//    When a package is described at several locations, the most authoritative one is published.
//
//  Records:
//    A package record gathers all descriptions of a package across pool locations.
//    Records are what the box persists and what the exporter publishes.
//
//  Events:
//    Package events are emitted once a mutation has been committed.
//
//  Log entries:
//    An audit trail of package events.
package model

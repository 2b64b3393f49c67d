// Package service exposes the operations of the box to its front ends.
//
// Every call runs in its own unit of work. Committed changes are published as
// events, which other services (such as the change log) and the exporter consume.
package service

package model

import "time"

// LogEntryType qualifies a log entry
type LogEntryType string

// Log entry types
const (
	LogEntryAdd    LogEntryType = "add"
	LogEntryUpdate LogEntryType = "update"
	LogEntryRemove LogEntryType = "remove"
)

// PackageLogEntry records a change made to the box
type PackageLogEntry struct {
	ID      string       `json:"id" yaml:"id"`
	Time    time.Time    `json:"time" yaml:"time"`
	Type    LogEntryType `json:"type" yaml:"type"`
	Package Package      `json:"package" yaml:"package"`
}

package model

// Event is a domain event, emitted once the mutation it describes has been committed
type Event interface {
	EventName() string

	// Sections touched by the event
	Sections() []Section
}

var (
	_ Event = PackageAdded{}
	_ Event = PackageUpdated{}
	_ Event = PackageRemoved{}
)

// PackageAdded is emitted when a package is added to the box
type PackageAdded struct {
	Package Package `json:"package"`
}

// EventName for this event
func (PackageAdded) EventName() string { return "package.added" }

// Sections touched by this event
func (e PackageAdded) Sections() []Section { return []Section{e.Package.Section} }

// PackageUpdated is emitted when a package is replaced in the box
type PackageUpdated struct {
	Old Package `json:"old"`
	New Package `json:"new"`
}

// EventName for this event
func (PackageUpdated) EventName() string { return "package.updated" }

// Sections touched by this event
func (e PackageUpdated) Sections() []Section {
	if e.Old.Section == e.New.Section {
		return []Section{e.New.Section}
	}
	return []Section{e.Old.Section, e.New.Section}
}

// PackageRemoved is emitted when a package is removed from the box
type PackageRemoved struct {
	ID PackageID `json:"id"`
}

// EventName for this event
func (PackageRemoved) EventName() string { return "package.removed" }

// Sections touched by this event
func (e PackageRemoved) Sections() []Section { return []Section{e.ID.Section} }

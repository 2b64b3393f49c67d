package export

import (
	"sync"

	"github.com/oneconcern/pacbox/pkg/model"
)

// DirtySet is the set of sections waiting for an export.
//
// It is safe for concurrent use: sections marked while a pass runs are kept for the next pass.
type DirtySet struct {
	mu       sync.Mutex
	sections map[model.Section]struct{}
}

// NewDirtySet builds an empty set
func NewDirtySet() *DirtySet {
	return &DirtySet{sections: make(map[model.Section]struct{})}
}

// Mark sections as dirty
func (d *DirtySet) Mark(sections ...model.Section) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range sections {
		d.sections[s] = struct{}{}
	}
}

// Drain empties the set and returns its sections, sorted
func (d *DirtySet) Drain() []model.Section {
	d.mu.Lock()
	drained := d.sections
	d.sections = make(map[model.Section]struct{})
	d.mu.Unlock()

	return sorted(drained)
}

// Restore marks again sections that could not be exported
func (d *DirtySet) Restore(sections ...model.Section) {
	d.Mark(sections...)
}

// Sections currently marked dirty, sorted
func (d *DirtySet) Sections() []model.Section {
	d.mu.Lock()
	defer d.mu.Unlock()

	return sorted(d.sections)
}

// Len is the number of dirty sections
func (d *DirtySet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.sections)
}

func sorted(set map[model.Section]struct{}) []model.Section {
	sections := make([]model.Section, 0, len(set))
	for s := range set {
		sections = append(sections, s)
	}
	model.SortSections(sections)
	return sections
}

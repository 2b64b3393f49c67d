package model

import (
	"sort"
	"strings"
)

const sectionSeparator = "/"

// Section is a partition of the box: branch x repository x architecture
type Section struct {
	Branch       string `json:"branch" yaml:"branch" mapstructure:"branch"`
	Repository   string `json:"repository" yaml:"repository" mapstructure:"repository"`
	Architecture string `json:"architecture" yaml:"architecture" mapstructure:"architecture"`
}

// String renders the section as branch/repository/architecture.
//
// This is also the relative location of the section in the box.
func (s Section) String() string {
	return s.Branch + sectionSeparator + s.Repository + sectionSeparator + s.Architecture
}

// Less orders sections by lexical comparison of the (branch, repository, architecture) triple
func (s Section) Less(other Section) bool {
	if s.Branch != other.Branch {
		return s.Branch < other.Branch
	}
	if s.Repository != other.Repository {
		return s.Repository < other.Repository
	}
	return s.Architecture < other.Architecture
}

// Validate a section: all components are required and may not contain key separators
func (s Section) Validate() error {
	for _, part := range []struct {
		name, value string
	}{
		{"branch", s.Branch},
		{"repository", s.Repository},
		{"architecture", s.Architecture},
	} {
		if part.value == "" {
			return ErrInvalidSection.Describe("empty %s", part.name)
		}
		if strings.ContainsAny(part.value, "/:") {
			return ErrInvalidSection.Describe("%s %q contains a reserved character", part.name, part.value)
		}
	}
	return nil
}

// ParseSection parses a section rendered as branch/repository/architecture
func ParseSection(s string) (Section, error) {
	parts := strings.Split(s, sectionSeparator)
	if len(parts) != 3 {
		return Section{}, ErrInvalidSection.Describe("%q", s)
	}
	section := Section{Branch: parts[0], Repository: parts[1], Architecture: parts[2]}
	if err := section.Validate(); err != nil {
		return Section{}, err
	}
	return section, nil
}

// SortSections sorts sections in place, using Less
func SortSections(sections []Section) {
	sort.Slice(sections, func(i, j int) bool { return sections[i].Less(sections[j]) })
}

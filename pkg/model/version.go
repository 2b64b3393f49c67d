package model

import (
	"strings"
)

// PackageVersion is an epoch-aware package version, as in epoch:version-release
type PackageVersion struct {
	Epoch   string `json:"epoch,omitempty" yaml:"epoch,omitempty"`
	Version string `json:"version" yaml:"version"`
	Release string `json:"release,omitempty" yaml:"release,omitempty"`
}

// ParseVersion splits a version string like "1:2.3.4-2" into its components
func ParseVersion(s string) PackageVersion {
	var v PackageVersion

	if i := strings.IndexByte(s, ':'); i > 0 && isDigits(s[:i]) {
		v.Epoch = s[:i]
		s = s[i+1:]
	}
	if i := strings.LastIndexByte(s, '-'); i >= 0 {
		v.Release = s[i+1:]
		s = s[:i]
	}
	v.Version = s

	return v
}

// String renders the version, omitting a zero epoch
func (v PackageVersion) String() string {
	var b strings.Builder
	if v.Epoch != "" && strings.TrimLeft(v.Epoch, "0") != "" {
		b.WriteString(v.Epoch)
		b.WriteByte(':')
	}
	b.WriteString(v.Version)
	if v.Release != "" {
		b.WriteByte('-')
		b.WriteString(v.Release)
	}
	return b.String()
}

// IsZero tells if this version is empty
func (v PackageVersion) IsZero() bool {
	return v.Version == "" && v.Release == "" && v.Epoch == ""
}

// Compare two versions, with the same semantics as pacman's vercmp.
//
// It returns -1 if a is older than b, 1 if a is newer and 0 if both are equivalent.
// The release is only compared when both versions carry one.
func Compare(a, b PackageVersion) int {
	epochA, epochB := a.Epoch, b.Epoch
	if epochA == "" {
		epochA = "0"
	}
	if epochB == "" {
		epochB = "0"
	}
	if r := segmentCompare(epochA, epochB); r != 0 {
		return r
	}
	if r := segmentCompare(a.Version, b.Version); r != 0 {
		return r
	}
	if a.Release != "" && b.Release != "" {
		return segmentCompare(a.Release, b.Release)
	}
	return 0
}

// Newer tells if v is strictly newer than other
func (v PackageVersion) Newer(other PackageVersion) bool {
	return Compare(v, other) > 0
}

// segmentCompare is rpmvercmp, as used by libalpm
func segmentCompare(a, b string) int {
	if a == b {
		return 0
	}

	var one, two, ptr1, ptr2 int

	for one < len(a) && two < len(b) {
		for one < len(a) && !isAlnum(a[one]) {
			one++
		}
		for two < len(b) && !isAlnum(b[two]) {
			two++
		}
		if one >= len(a) || two >= len(b) {
			break
		}

		// different separator lengths
		if one-ptr1 != two-ptr2 {
			if one-ptr1 < two-ptr2 {
				return -1
			}
			return 1
		}

		ptr1, ptr2 = one, two

		var isNum bool
		if isDigit(a[ptr1]) {
			for ptr1 < len(a) && isDigit(a[ptr1]) {
				ptr1++
			}
			for ptr2 < len(b) && isDigit(b[ptr2]) {
				ptr2++
			}
			isNum = true
		} else {
			for ptr1 < len(a) && isAlpha(a[ptr1]) {
				ptr1++
			}
			for ptr2 < len(b) && isAlpha(b[ptr2]) {
				ptr2++
			}
		}

		segA, segB := a[one:ptr1], b[two:ptr2]

		if segB == "" {
			// numeric segments are always newer than alpha segments
			if isNum {
				return 1
			}
			return -1
		}

		if isNum {
			segA = strings.TrimLeft(segA, "0")
			segB = strings.TrimLeft(segB, "0")
			if len(segA) > len(segB) {
				return 1
			}
			if len(segB) > len(segA) {
				return -1
			}
		}

		if r := strings.Compare(segA, segB); r != 0 {
			return r
		}

		one, two = ptr1, ptr2
	}

	if one >= len(a) && two >= len(b) {
		return 0
	}

	// a remaining alpha segment never beats an empty string
	if (one >= len(a) && !isAlpha(b[two])) || (one < len(a) && isAlpha(a[one])) {
		return -1
	}
	return 1
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isAlnum(c byte) bool { return isDigit(c) || isAlpha(c) }

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return s != ""
}

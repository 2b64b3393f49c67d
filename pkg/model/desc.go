package model

import (
	"path/filepath"
	"strings"
)

// Desc is the text of a package descriptor, as found in a package manager database.
//
// It is a sequence of blocks like:
//
//	%NAME%
//	foo
//
//	%VERSION%
//	1.0-1
type Desc string

// Desc field names
const (
	DescFilename  = "FILENAME"
	DescName      = "NAME"
	DescVersion   = "VERSION"
	DescArch      = "ARCH"
	DescCSize     = "CSIZE"
	DescSHA256Sum = "SHA256SUM"
)

// NewDesc builds the descriptor for a package, with its base fields
func NewDesc(pkg Package) Desc {
	return Desc("").
		With(DescFilename, filepath.Base(pkg.Filepath)).
		With(DescName, pkg.Name).
		With(DescVersion, pkg.Version.String()).
		With(DescArch, pkg.Architecture)
}

// With appends a field to the descriptor. Empty values are skipped.
func (d Desc) With(key string, values ...string) Desc {
	var b strings.Builder
	b.WriteString(string(d))

	var written bool
	for _, v := range values {
		if v == "" {
			continue
		}
		if !written {
			b.WriteString("%" + key + "%\n")
			written = true
		}
		b.WriteString(v)
		b.WriteByte('\n')
	}
	if written {
		b.WriteByte('\n')
	}
	return Desc(b.String())
}

// Get the value of a field. Multi-valued fields are joined by a new line.
func (d Desc) Get(key string) (string, bool) {
	marker := "%" + key + "%"
	lines := strings.Split(string(d), "\n")

	for i, line := range lines {
		if strings.TrimSpace(line) != marker {
			continue
		}
		var values []string
		for _, v := range lines[i+1:] {
			if strings.TrimSpace(v) == "" {
				break
			}
			values = append(values, v)
		}
		return strings.Join(values, "\n"), true
	}
	return "", false
}

// Description of a package at some pool location
type Description struct {
	Desc          Desc   `json:"desc"`
	Filepath      string `json:"filepath"`
	SignaturePath string `json:"signature_path,omitempty"`
}

// HasSignature tells if a signature file is described
func (d Description) HasSignature() bool {
	return d.SignaturePath != ""
}

// DescribePackage builds the description of a package at its pool location
func DescribePackage(pkg Package) Description {
	sig, _ := pkg.SignaturePath()
	return Description{
		Desc:          NewDesc(pkg),
		Filepath:      pkg.Filepath,
		SignaturePath: sig,
	}
}

// Package status declares error constants returned by the exporter
package status

import "github.com/oneconcern/pacbox/pkg/errors"

var (
	// ErrFilesystem wraps a failed filesystem operation, with the system error as its cause
	ErrFilesystem = errors.New("filesystem error")

	// ErrArchive wraps a failure of the archive writer or its compression filter
	ErrArchive = errors.New("archive error")

	// ErrInvalidKey indicates a store key that does not decode to a package id
	ErrInvalidKey = errors.New("invalid package key")

	// ErrNoLocation indicates a package record without any usable pool location
	ErrNoLocation = errors.New("cannot select preferred location")

	// ErrNoVersion indicates a package description without a version
	ErrNoVersion = errors.New("no valid version")

	// ErrWriteDesc indicates that a package description could not be written to the archive
	ErrWriteDesc = errors.New("failed to write description")

	// ErrSymlink indicates that a package file could not be linked into the section
	ErrSymlink = errors.New("failed to link package file")

	// ErrCompression indicates an unsupported compression
	ErrCompression = errors.New("unsupported compression")
)

package model

import "github.com/oneconcern/pacbox/pkg/errors"

var (
	// ErrInvalidSection indicates a malformed section
	ErrInvalidSection = errors.New("invalid section")

	// ErrInvalidPackageID indicates a malformed package identity or key
	ErrInvalidPackageID = errors.New("invalid package id")

	// ErrInvalidFilename indicates a package file name that does not follow the name-version-release-arch.pkg.tar.ext convention
	ErrInvalidFilename = errors.New("invalid package file name")
)

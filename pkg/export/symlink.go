package export

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"

	"github.com/oneconcern/pacbox/pkg/export/status"
)

// Symlink creates a symbolic link at link, pointing to target with a path relative to the link's directory.
//
// It fails with status.ErrFilesystem wrapping EEXIST if something already exists at the link path,
// including a dangling symlink.
func Symlink(fs afero.Fs, target, link string) error {
	linker, ok := fs.(afero.Symlinker)
	if !ok {
		return status.ErrFilesystem.Describe("symlink %q", link).Wrap(&os.LinkError{Op: "symlink", Old: target, New: link, Err: afero.ErrNoSymlink})
	}

	if _, _, err := linker.LstatIfPossible(link); err == nil {
		return status.ErrFilesystem.Describe("symlink %q", link).Wrap(&os.LinkError{Op: "symlink", Old: target, New: link, Err: syscall.EEXIST})
	} else if !os.IsNotExist(err) {
		return status.ErrFilesystem.Describe("symlink %q", link).Wrap(err)
	}

	absTarget, err := filepath.Abs(target)
	if err != nil {
		return status.ErrFilesystem.Describe("symlink %q", link).Wrap(err)
	}
	absLink, err := filepath.Abs(link)
	if err != nil {
		return status.ErrFilesystem.Describe("symlink %q", link).Wrap(err)
	}
	relative, err := filepath.Rel(filepath.Dir(absLink), absTarget)
	if err != nil {
		return status.ErrFilesystem.Describe("symlink %q", link).Wrap(err)
	}

	if err = linker.SymlinkIfPossible(relative, link); err != nil {
		return status.ErrFilesystem.Describe("symlink %q", link).Wrap(err)
	}
	return nil
}

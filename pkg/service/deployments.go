package service

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/model"
	"github.com/oneconcern/pacbox/pkg/store/status"
)

const (
	poolDirPerm  = 0o755
	poolFilePerm = 0o644
)

// PoolPath tells where the packages deployed to a section are stored
type PoolPath func(model.Section) string

// Deployments moves package files built by automation into the pool, and adds them to the box
type Deployments struct {
	packages *Packages
	fs       afero.Fs
	pool     PoolPath
	*options
}

// NewDeployments builds the deployment service
func NewDeployments(packages *Packages, pool PoolPath, fs afero.Fs, opts ...Option) *Deployments {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Deployments{packages: packages, fs: fs, pool: pool, options: defaultOptions(opts)}
}

// Deploy a package file, and its signature when not empty, to a section.
//
// The files are copied to the pool, and the package is added at the automated location.
func (d *Deployments) Deploy(ctx context.Context, section model.Section, file, signature string) (model.Package, error) {
	if !d.packages.box.HasSection(section) {
		return model.Package{}, status.ErrUnknownSection.Describe("%s", section)
	}
	pkg, err := model.ParseFilename(section, file)
	if err != nil {
		return model.Package{}, status.ErrInvalidArgument.Wrap(err)
	}

	dir := d.pool(section)
	if err = d.fs.MkdirAll(dir, poolDirPerm); err != nil {
		return model.Package{}, status.ErrOperation.Describe("create pool %q", dir).WrapWithLog(d.l, err, zap.Stringer("section", section))
	}

	pkg.Filepath = filepath.Join(dir, filepath.Base(file))
	if err = d.copy(file, pkg.Filepath); err != nil {
		return model.Package{}, err
	}
	if signature != "" {
		sig, _ := model.Package{Filepath: pkg.Filepath, HasSignature: true}.SignaturePath()
		if err = d.copy(signature, sig); err != nil {
			return model.Package{}, err
		}
		pkg.HasSignature = true
	}
	pkg.Location = model.LocationAutomated

	if err = d.packages.Add(ctx, pkg); err != nil {
		return model.Package{}, err
	}
	d.l.Info("package deployed", zap.Stringer("package", pkg.ID()), zap.String("version", pkg.Version.String()), zap.String("path", pkg.Filepath))
	return pkg, nil
}

func (d *Deployments) copy(from, to string) error {
	if from == to {
		return nil
	}
	src, err := d.fs.Open(from)
	if err != nil {
		return status.ErrInvalidArgument.Describe("open %q", from).Wrap(err)
	}
	defer func() { _ = src.Close() }()

	dst, err := d.fs.OpenFile(to, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, poolFilePerm)
	if err != nil {
		return status.ErrOperation.Describe("create %q", to).Wrap(err)
	}
	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return status.ErrOperation.Describe("copy to %q", to).Wrap(err)
	}
	if err = dst.Close(); err != nil {
		return status.ErrOperation.Describe("close %q", to).Wrap(err)
	}
	return nil
}

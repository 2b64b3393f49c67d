package service

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/model"
	"github.com/oneconcern/pacbox/pkg/store/status"
)

func TestDeploy(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	pub := &recorder{}
	packages := NewPackages(testBoxOn(t, fs), Logger(zap.NewNop()), WithPublisher(pub))
	pool := func(section model.Section) string {
		if section == testingCore {
			return "/srv/pool/testing"
		}
		return "/srv/pool/automated"
	}
	deployments := NewDeployments(packages, pool, fs, Logger(zap.NewNop()))

	require.NoError(t, afero.WriteFile(fs, "/upload/foo-1.0-1-x86_64.pkg.tar.zst", []byte("foo package"), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/upload/foo.sig", []byte("signature"), 0o600))

	pkg, err := deployments.Deploy(ctx, stableCore, "/upload/foo-1.0-1-x86_64.pkg.tar.zst", "/upload/foo.sig")
	require.NoError(t, err)
	assert.Equal(t, "/srv/pool/automated/foo-1.0-1-x86_64.pkg.tar.zst", pkg.Filepath)
	assert.Equal(t, model.LocationAutomated, pkg.Location)
	assert.True(t, pkg.HasSignature)

	content, err := afero.ReadFile(fs, pkg.Filepath)
	require.NoError(t, err)
	assert.Equal(t, "foo package", string(content))
	content, err = afero.ReadFile(fs, pkg.Filepath+".sig")
	require.NoError(t, err)
	assert.Equal(t, "signature", string(content))

	got, err := packages.Get(ctx, pkg.ID())
	require.NoError(t, err)
	assert.Equal(t, pkg, got)
	require.Len(t, pub.Events(), 1)
	assert.Equal(t, model.PackageAdded{Package: pkg}, pub.Events()[0])

	t.Run("pool override", func(t *testing.T) {
		pkg, err := deployments.Deploy(ctx, testingCore, "/upload/foo-1.0-1-x86_64.pkg.tar.zst", "")
		require.NoError(t, err)
		assert.Equal(t, "/srv/pool/testing/foo-1.0-1-x86_64.pkg.tar.zst", pkg.Filepath)
		assert.False(t, pkg.HasSignature)
	})

	t.Run("unknown section", func(t *testing.T) {
		_, err := deployments.Deploy(ctx, unknownExtra, "/upload/foo-1.0-1-x86_64.pkg.tar.zst", "")
		assert.True(t, errors.Is(err, status.ErrUnknownSection))
	})

	t.Run("invalid file name", func(t *testing.T) {
		_, err := deployments.Deploy(ctx, stableCore, "/upload/foo.sig", "")
		assert.True(t, errors.Is(err, status.ErrInvalidArgument))
		assert.True(t, errors.Is(err, model.ErrInvalidFilename))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := deployments.Deploy(ctx, stableCore, "/upload/bar-1.0-1-x86_64.pkg.tar.zst", "")
		assert.True(t, errors.Is(err, status.ErrInvalidArgument))
	})
}

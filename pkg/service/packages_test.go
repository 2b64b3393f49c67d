package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/model"
	"github.com/oneconcern/pacbox/pkg/store/status"
)

func TestPackages(t *testing.T) {
	ctx := context.Background()
	pub := &recorder{}
	svc := NewPackages(testBox(t), Logger(zap.NewNop()), WithPublisher(pub))

	foo := testPackage(stableCore, "foo", "1.0-1")
	bar := testPackage(stableCore, "bar", "2.0-1")
	require.NoError(t, svc.Add(ctx, foo, bar))
	require.Len(t, pub.Events(), 2)
	for _, event := range pub.Events() {
		assert.IsType(t, model.PackageAdded{}, event)
	}

	pkgs, err := svc.List(ctx, stableCore)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.Package{foo, bar}, pkgs)

	got, err := svc.Get(ctx, foo.ID())
	require.NoError(t, err)
	assert.Equal(t, foo, got)

	t.Run("update", func(t *testing.T) {
		newer := testPackage(stableCore, "foo", "1.1-1")
		require.NoError(t, svc.Update(ctx, newer))

		events := pub.Events()
		updated, ok := events[len(events)-1].(model.PackageUpdated)
		require.True(t, ok)
		assert.Equal(t, foo, updated.Old)
		assert.Equal(t, newer, updated.New)

		got, err := svc.Get(ctx, foo.ID())
		require.NoError(t, err)
		assert.Equal(t, "1.1-1", got.Version.String())
	})

	t.Run("move", func(t *testing.T) {
		before := len(pub.Events())
		require.NoError(t, svc.Move(ctx, bar.ID(), testingCore))

		events := pub.Events()[before:]
		require.Len(t, events, 2)
		sections := map[model.Section]bool{}
		for _, event := range events {
			for _, s := range event.Sections() {
				sections[s] = true
			}
		}
		assert.Equal(t, map[model.Section]bool{stableCore: true, testingCore: true}, sections)

		_, err := svc.Get(ctx, bar.ID())
		assert.True(t, errors.Is(err, status.ErrEntityNotFound))

		moved, err := svc.Get(ctx, model.PackageID{Section: testingCore, Name: "bar"})
		require.NoError(t, err)
		assert.Equal(t, "2.0-1", moved.Version.String())
	})

	t.Run("remove", func(t *testing.T) {
		before := len(pub.Events())
		require.NoError(t, svc.Remove(ctx, foo.ID(), model.PackageID{Section: stableCore, Name: "unknown"}))

		events := pub.Events()[before:]
		require.Len(t, events, 1)
		assert.Equal(t, model.PackageRemoved{ID: foo.ID()}, events[0])

		pkgs, err := svc.List(ctx, stableCore)
		require.NoError(t, err)
		assert.Empty(t, pkgs)
	})
}

func TestPackagesRemoveAt(t *testing.T) {
	ctx := context.Background()
	svc := NewPackages(testBox(t), Logger(zap.NewNop()))

	manual := testPackage(stableCore, "foo", "1.0-2")
	automated := testPackage(stableCore, "foo", "1.0-1")
	automated.Location = model.LocationAutomated
	automated.Filepath = "/srv/pool/automated/foo-1.0-1-x86_64.pkg.tar.zst"
	require.NoError(t, svc.Add(ctx, automated, manual))

	got, err := svc.Get(ctx, manual.ID())
	require.NoError(t, err)
	assert.Equal(t, model.LocationManual, got.Location)

	require.NoError(t, svc.RemoveAt(ctx, manual.ID(), model.LocationManual))
	got, err = svc.Get(ctx, manual.ID())
	require.NoError(t, err)
	assert.Equal(t, automated, got)
}

func TestPackagesFailures(t *testing.T) {
	ctx := context.Background()
	pub := &recorder{}
	svc := NewPackages(testBox(t), Logger(zap.NewNop()), WithPublisher(pub))

	// the whole call fails as one unit of work
	err := svc.Add(ctx, testPackage(stableCore, "foo", "1.0-1"), testPackage(unknownExtra, "bar", "1.0-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrUnknownSection))
	assert.Empty(t, pub.Events())

	pkgs, err := svc.List(ctx, stableCore)
	require.NoError(t, err)
	assert.Empty(t, pkgs)

	_, err = svc.List(ctx, unknownExtra)
	assert.True(t, errors.Is(err, status.ErrUnknownSection))

	err = svc.Move(ctx, model.PackageID{Section: stableCore, Name: "missing"}, testingCore)
	assert.True(t, errors.Is(err, status.ErrEntityNotFound))
	assert.Empty(t, pub.Events())
}

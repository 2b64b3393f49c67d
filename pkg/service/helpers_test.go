package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/box"
	"github.com/oneconcern/pacbox/pkg/model"
	"github.com/oneconcern/pacbox/pkg/store/bdgr"
)

var (
	stableCore   = model.Section{Branch: "stable", Repository: "core", Architecture: "x86_64"}
	testingCore  = model.Section{Branch: "testing", Repository: "core", Architecture: "x86_64"}
	unknownExtra = model.Section{Branch: "stable", Repository: "extra", Architecture: "x86_64"}
)

func testBox(t testing.TB) *box.Box {
	return testBoxOn(t, afero.NewMemMapFs())
}

func testBoxOn(t testing.TB, fs afero.Fs) *box.Box {
	env, err := bdgr.Open("", bdgr.Logger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })

	ctx := context.Background()
	sections := box.NewSectionRepository(env)
	require.NoError(t, box.SeedSections(ctx, env, sections, stableCore, testingCore))

	b, err := box.New(ctx, env, sections,
		box.Logger(zap.NewNop()),
		box.Filesystem(fs),
		box.Dir("/srv/box"),
	)
	require.NoError(t, err)
	return b
}

func testPackage(section model.Section, name, version string) model.Package {
	return model.Package{
		Section:      section,
		Name:         name,
		Version:      model.ParseVersion(version),
		Architecture: "x86_64",
		Filepath:     "/srv/pool/manual/" + name + "-" + version + "-x86_64.pkg.tar.zst",
		Location:     model.LocationManual,
	}
}

// recorder is a publisher keeping all published events
type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(_ context.Context, events ...model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

// tick returns a clock advancing by one second on each call
func tick(start time.Time) func() time.Time {
	return tickEvery(start, time.Second)
}

// tickEvery returns a clock advancing by step on each call
func tickEvery(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

package bdgr

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/store/status"
)

func rename(ctx context.Context, t testing.TB, env *Env, repo *Repository[widget, widgetDTO], id, name string) {
	_, err := env.Update(ctx, func(uow *UnitOfWork) error {
		return repo.Update(ctx, uow, widget{ID: id, Name: name})
	})
	require.NoError(t, err)
}

func TestCommitConflict(t *testing.T) {
	env := testEnv(t)
	repo := testWidgets(env, "widgets")
	ctx := context.Background()
	seedWidgets(t, env, repo, 1)

	first, err := env.Begin(ctx)
	require.NoError(t, err)
	second, err := env.Begin(ctx)
	require.NoError(t, err)

	// both read the same widget, then stage a change derived from it
	for _, uow := range []*UnitOfWork{first, second} {
		w, err := repo.FindByID(ctx, uow, "w000")
		require.NoError(t, err)
		w.Name += "+"
		require.NoError(t, repo.Update(ctx, uow, w))
	}

	require.NoError(t, first.Commit(ctx))

	err = second.Commit(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrConflict))
	assert.True(t, second.Active(), "a conflicting unit of work keeps its staged changes")
	require.NoError(t, second.Rollback())

	require.NoError(t, env.View(ctx, func(uow *UnitOfWork) error {
		w, err := repo.FindByID(ctx, uow, "w000")
		require.NoError(t, err)
		assert.Equal(t, "widget 0+", w.Name)
		return nil
	}))
}

func TestCommitConflictOnMissingEntity(t *testing.T) {
	env := testEnv(t)
	repo := testWidgets(env, "widgets")
	ctx := context.Background()

	uow, err := env.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.FindByID(ctx, uow, "late")
	require.True(t, errors.Is(err, status.ErrEntityNotFound))
	require.NoError(t, repo.Add(ctx, uow, widget{ID: "late", Name: "mine"}))

	rename(ctx, t, env, repo, "late", "theirs")

	assert.True(t, errors.Is(uow.Commit(ctx), status.ErrConflict))
	require.NoError(t, uow.Rollback())
}

func TestUnreadEntitiesDoNotConflict(t *testing.T) {
	env := testEnv(t)
	repo := testWidgets(env, "widgets")
	ctx := context.Background()
	seedWidgets(t, env, repo, 2)

	uow, err := env.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.FindByID(ctx, uow, "w000")
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, uow, widget{ID: "w000", Name: "mine"}))

	rename(ctx, t, env, repo, "w001", "theirs")

	require.NoError(t, uow.Commit(ctx))
}

func TestUpdateRunsAgainOnConflict(t *testing.T) {
	env := testEnv(t)
	repo := testWidgets(env, "widgets")
	ctx := context.Background()
	seedWidgets(t, env, repo, 1)

	var runs int
	events, err := env.Update(ctx, func(uow *UnitOfWork) error {
		runs++
		w, err := repo.FindByID(ctx, uow, "w000")
		if err != nil {
			return err
		}
		if runs == 1 {
			// a concurrent writer slips in between the read and the commit
			rename(ctx, t, env, repo, "w000", "concurrent")
		}
		w.Name += " then mine"
		return repo.Update(ctx, uow, w)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
	require.Len(t, events, 1)
	assert.Equal(t, widgetEvent{Kind: Updated, ID: "w000", Old: "concurrent", New: "concurrent then mine"}, events[0])
}

func TestUpdateGivesUpOnPersistentConflict(t *testing.T) {
	env, err := Open("", CommitRetries(2, 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	repo := testWidgets(env, "widgets")
	ctx := context.Background()
	seedWidgets(t, env, repo, 1)

	var runs int
	_, err = env.Update(ctx, func(uow *UnitOfWork) error {
		runs++
		if _, err := repo.FindByID(ctx, uow, "w000"); err != nil {
			return err
		}
		rename(ctx, t, env, repo, "w000", "always first")
		return repo.Remove(ctx, uow, "w000")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrConflict))
	assert.Equal(t, 3, runs)
}

func TestRefresh(t *testing.T) {
	env := testEnv(t)
	repo := testWidgets(env, "widgets")
	ctx := context.Background()

	uow, err := env.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Add(ctx, uow, widget{ID: "mine", Name: "staged"}))

	seedWidgets(t, env, repo, 2)
	all, err := repo.All(ctx, uow)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, uow.Refresh())

	all, err = repo.All(ctx, uow)
	require.NoError(t, err)
	assert.Len(t, all, 2, "a refreshed unit of work sees changes committed since it began")

	_, staged, upsert, err := repo.Pending(uow, "mine")
	require.NoError(t, err)
	assert.True(t, staged, "staged changes survive a refresh")
	assert.True(t, upsert)

	require.NoError(t, uow.Commit(ctx))
	assert.True(t, errors.Is(uow.Refresh(), status.ErrDefunctTransaction))
}

func TestRefreshRereadClearsConflict(t *testing.T) {
	env := testEnv(t)
	repo := testWidgets(env, "widgets")
	ctx := context.Background()
	seedWidgets(t, env, repo, 1)

	uow, err := env.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.FindByID(ctx, uow, "w000")
	require.NoError(t, err)

	rename(ctx, t, env, repo, "w000", "theirs")

	require.NoError(t, uow.Refresh())
	w, err := repo.FindByID(ctx, uow, "w000")
	require.NoError(t, err)
	assert.Equal(t, "theirs", w.Name)
	w.Name += " and mine"
	require.NoError(t, repo.Update(ctx, uow, w))
	require.NoError(t, uow.Commit(ctx))
}

func TestAbandonedUnitOfWork(t *testing.T) {
	env := testEnv(t)
	repo := testWidgets(env, "widgets")
	ctx := context.Background()
	seedWidgets(t, env, repo, 2)

	func() {
		uow, err := env.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, repo.Remove(ctx, uow, "w000"))
		require.NoError(t, repo.Add(ctx, uow, widget{ID: "dropped", Name: "never committed"}))
		// no commit, no rollback
	}()
	runtime.GC()
	runtime.GC()

	require.NoError(t, env.View(ctx, func(uow *UnitOfWork) error {
		all, err := repo.All(ctx, uow)
		require.NoError(t, err)
		assert.Equal(t, []widget{{ID: "w000", Name: "widget 0"}, {ID: "w001", Name: "widget 1"}}, all)
		return nil
	}))

	// the store keeps accepting writes
	rename(ctx, t, env, repo, "w001", "still writable")
}

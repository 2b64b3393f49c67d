package bdgr

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/model"
)

type widget struct {
	ID   string
	Name string
}

type widgetDTO struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Junk interface{} `json:"junk,omitempty"`
}

// poisoned widgets cannot be encoded
const poisoned = "poison"

type widgetCodec struct{}

func (widgetCodec) ID(w widget) string { return w.ID }

func (widgetCodec) ToDTO(w widget) widgetDTO {
	dto := widgetDTO{ID: w.ID, Name: w.Name}
	if w.Name == poisoned {
		dto.Junk = make(chan int)
	}
	return dto
}

func (widgetCodec) ToEntity(d widgetDTO) (widget, error) {
	if d.ID == "" {
		return widget{}, errors.New("widget without id")
	}
	return widget{ID: d.ID, Name: d.Name}, nil
}

// widgetEvent is a test event recording a committed change
type widgetEvent struct {
	Kind ChangeKind
	ID   string
	Old  string
	New  string
}

func (widgetEvent) EventName() string { return "widget" }

func (widgetEvent) Sections() []model.Section { return nil }

func widgetEvents(changes []Change[widget]) []model.Event {
	events := make([]model.Event, 0, len(changes))
	for _, c := range changes {
		e := widgetEvent{Kind: c.Kind, ID: c.ID}
		if c.Old != nil {
			e.Old = c.Old.Name
		}
		if c.New != nil {
			e.New = c.New.Name
		}
		events = append(events, e)
	}
	return events
}

func testEnv(t testing.TB) *Env {
	env, err := Open("", Logger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func testWidgets(env *Env, table string) *Repository[widget, widgetDTO] {
	return NewRepository[widget, widgetDTO](env, table, widgetCodec{}, WithEvents(widgetEvents))
}

func seedWidgets(t testing.TB, env *Env, repo *Repository[widget, widgetDTO], n int) {
	ctx := context.Background()
	_, err := env.Update(ctx, func(uow *UnitOfWork) error {
		for i := 0; i < n; i++ {
			if err := repo.Add(ctx, uow, widget{ID: fmt.Sprintf("w%03d", i), Name: fmt.Sprintf("widget %d", i)}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

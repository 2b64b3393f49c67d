package export

import (
	"context"

	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/model"
)

// Trigger requests an export as soon as possible
type Trigger interface {
	Trigger()
}

// Tracker marks the sections touched by domain events as dirty.
//
// It is meant to be subscribed to the event bus.
type Tracker struct {
	dirty   *DirtySet
	trigger Trigger
	l       *zap.Logger
}

// NewTracker builds a tracker marking sections in a dirty set.
//
// When trigger is not nil, it is notified after sections have been marked.
func NewTracker(dirty *DirtySet, trigger Trigger, l *zap.Logger) *Tracker {
	if l == nil {
		l = zap.NewNop()
	}
	return &Tracker{dirty: dirty, trigger: trigger, l: l}
}

// Handle marks the sections of an event
func (t *Tracker) Handle(_ context.Context, event model.Event) error {
	sections := event.Sections()
	if len(sections) == 0 {
		return nil
	}
	t.dirty.Mark(sections...)
	t.l.Debug("sections marked dirty", zap.String("event", event.EventName()), zap.Int("dirty", t.dirty.Len()))

	if t.trigger != nil {
		t.trigger.Trigger()
	}
	return nil
}

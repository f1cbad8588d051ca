// Package handlers holds the ordered chain of side-effect handlers run for
// every event: the activity timeline, follow-up tasks and notifications.
package handlers

import (
	"context"

	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
)

const (
	NameActivity     = "activity"
	NameTask         = "task"
	NameNotification = "notification"
)

// DefaultOrder is the chain order. Later handlers may read what earlier ones produced.
var DefaultOrder = []string{NameActivity, NameTask, NameNotification}

// Handler performs one side effect for an event. prior holds the outcomes of
// the handlers that already ran in this chain.
type Handler interface {
	Name() string
	Handle(ctx context.Context, evt *models.Event, prior models.HandlerResults) Outcome
}

// Outcome is what a handler reports back to the executor.
type Outcome struct {
	Status      enums.HandlerStatus
	Err         error
	ProducedRef string
}

func Success(ref string) Outcome {
	return Outcome{Status: enums.HandlerStatusSuccess, ProducedRef: ref}
}

func Skipped() Outcome {
	return Outcome{Status: enums.HandlerStatusSkipped}
}

func Failed(err error) Outcome {
	return Outcome{Status: enums.HandlerStatusFailed, Err: err}
}

// Result converts the outcome into its persisted form.
func (o Outcome) Result() models.HandlerResult {
	res := models.HandlerResult{Status: o.Status, ProducedRef: o.ProducedRef}
	if o.Err != nil {
		res.Error = o.Err.Error()
	}
	if !res.Status.IsValid() {
		res.Status = enums.HandlerStatusFailed
		if res.Error == "" {
			res.Error = "handler returned no status"
		}
	}
	return res
}

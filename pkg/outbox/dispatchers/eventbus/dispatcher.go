// Package eventbus delivers relayed outbox rows to the in-process event bus
// as typed events.
package eventbus

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/fieldcrew/mobsched/pkg/eventbus"
	"github.com/fieldcrew/mobsched/pkg/outbox"
)

// DecodeFunc turns a stored payload back into the event value subscribers
// expect for topic.
type DecodeFunc func(topic string, payload json.RawMessage) (any, error)

type Dispatcher struct {
	bus    eventbus.EventBusWithError
	decode DecodeFunc
}

func New(bus eventbus.EventBusWithError, decode DecodeFunc) *Dispatcher {
	return &Dispatcher{bus: bus, decode: decode}
}

// Dispatch fails when decoding fails or a subscriber errors or panics, so the
// relay retries the row.
func (d *Dispatcher) Dispatch(_ context.Context, msg outbox.DispatchedMessage) error {
	event, err := d.decode(msg.Meta.Topic, msg.Payload)
	if err != nil {
		return errors.Wrapf(err, "decode %s", msg.Meta.Topic)
	}
	if err := d.bus.PublishE(event); err != nil && !errors.Is(err, eventbus.ErrNoSubscribers) {
		return err
	}
	return nil
}

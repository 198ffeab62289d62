package eventbus

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/mobsched/pkg/logging"
)

type crewSaved struct {
	crew string
}

type mobilizationDeleted struct {
	id string
}

func bufferLogger(level logrus.Level) (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(level)
	return log, buf
}

func TestPublisher_Publish_NoMatchingSubscriber(t *testing.T) {
	log, buf := bufferLogger(logrus.WarnLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *crewSaved) {
		t.Error("should not be called")
	})
	publisher.Publish(&mobilizationDeleted{id: "m1"})

	require.Contains(t, buf.String(), "eventbus.Publish: no matching subscribers")
}

func TestPublisher_Subscribe(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))
	var got string
	publisher.Subscribe(func(e *crewSaved) {
		got = e.crew
	})
	publisher.Publish(&crewSaved{crew: "north"})
	require.Equal(t, "north", got)
	require.Equal(t, 1, publisher.SubscribersCount())
}

func TestPublisher_Unsubscribe(t *testing.T) {
	publisher := NewEventPublisher(nil)
	calls := 0
	handler := func(e *crewSaved) { calls++ }
	publisher.Subscribe(handler)
	publisher.Publish(&crewSaved{})
	publisher.Unsubscribe(handler)
	publisher.Publish(&crewSaved{})

	require.Equal(t, 1, calls)
	require.Equal(t, 0, publisher.SubscribersCount())
}

func TestMatchSignature(t *testing.T) {
	require.True(t, MatchSignature(func(e *crewSaved) {}, []interface{}{&crewSaved{}}))
	require.False(t, MatchSignature(func(e *crewSaved) {}, []interface{}{&mobilizationDeleted{}}))
	require.False(t, MatchSignature(func(e *crewSaved) {}, []interface{}{}))
	require.False(t, MatchSignature(func(e *crewSaved) {}, []interface{}{&crewSaved{}, &crewSaved{}}))
	require.True(t, MatchSignature(func(ctx context.Context) {}, []interface{}{context.Background()}))
	require.True(t, MatchSignature(func(e *crewSaved) {}, []interface{}{nil}))
	require.False(t, MatchSignature("not a func", []interface{}{}))
}

func TestPublisher_PanicRecovery(t *testing.T) {
	t.Parallel()

	t.Run("panic is logged and other handlers still run", func(t *testing.T) {
		log, buf := bufferLogger(logrus.WarnLevel)
		publisher := NewEventPublisher(log)

		first, third := false, false
		publisher.Subscribe(func(e *crewSaved) { first = true })
		publisher.Subscribe(func(e *crewSaved) { panic("handler 2 panic") })
		publisher.Subscribe(func(e *crewSaved) { third = true })

		publisher.Publish(&crewSaved{crew: "x"})

		require.True(t, first)
		require.True(t, third)
		require.Contains(t, buf.String(), "panicked")
		require.Contains(t, buf.String(), "handler 2 panic")
		require.NotContains(t, buf.String(), "no matching subscribers")
	})

	t.Run("all handlers panicking counts as unhandled", func(t *testing.T) {
		log, buf := bufferLogger(logrus.WarnLevel)
		publisher := NewEventPublisher(log)
		publisher.Subscribe(func(e *crewSaved) { panic("always") })

		publisher.Publish(&crewSaved{})

		out := buf.String()
		require.True(t, strings.Contains(out, "panicked"))
		require.True(t, strings.Contains(out, "no matching subscribers"))
	})
}

func TestPublisher_PublishE(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrNoSubscribers when none match", func(t *testing.T) {
		publisher := NewEventPublisher(logrus.New()).(EventBusWithError)
		err := publisher.PublishE(&crewSaved{})
		require.ErrorIs(t, err, ErrNoSubscribers)
	})

	t.Run("joins handler errors", func(t *testing.T) {
		publisher := NewEventPublisher(nil).(EventBusWithError)
		err1 := errors.New("err1")
		err2 := errors.New("err2")
		publisher.Subscribe(func(e *crewSaved) error { return err1 })
		publisher.Subscribe(func(e *crewSaved) error { return err2 })

		err := publisher.PublishE(&crewSaved{})
		require.ErrorIs(t, err, err1)
		require.ErrorIs(t, err, err2)
	})

	t.Run("panic becomes an error", func(t *testing.T) {
		publisher := NewEventPublisher(nil).(EventBusWithError)
		called := false
		publisher.Subscribe(func(e *crewSaved) error { panic("boom") })
		publisher.Subscribe(func(e *crewSaved) error { called = true; return nil })

		err := publisher.PublishE(&crewSaved{})
		require.Error(t, err)
		require.True(t, called)
	})

	t.Run("invalid return signature", func(t *testing.T) {
		publisher := NewEventPublisher(nil).(EventBusWithError)
		publisher.Subscribe(func(e *crewSaved) int { return 1 })

		err := publisher.PublishE(&crewSaved{})
		require.ErrorIs(t, err, ErrInvalidHandlerReturn)
	})
}

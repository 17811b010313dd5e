package kafka

import (
	"context"

	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

const sourceService = "protocoliq"

// ActionPublisher publishes recorded user actions to the action topic.
type ActionPublisher struct {
	producer MessagePublisher
	topic    string
}

func NewActionPublisher(p MessagePublisher, topic string) *ActionPublisher {
	if topic == "" {
		topic = TopicUserAction
	}
	return &ActionPublisher{producer: p, topic: topic}
}

// PublishAction keys the event by user id.
func (a *ActionPublisher) PublishAction(ctx context.Context, e profile.ActionEvent) error {
	env, err := NewEventEnvelope(EventTypeUserAction, sourceService, e)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(a.topic, e.UserID)
	if err != nil {
		return err
	}
	return a.producer.Publish(ctx, msg)
}

// ActionRecorder applies an action to a user's profile.
type ActionRecorder interface {
	RecordAction(ctx context.Context, e profile.ActionEvent) error
}

// NewActionHandler decodes action envelopes and hands them to rec. Events
// that can never be applied are reported as validation errors so the consumer
// dead-letters them without retrying.
func NewActionHandler(rec ActionRecorder, logger logging.Logger) MessageHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(ctx context.Context, msg *Message) error {
		env, err := MessageToEventEnvelope(msg)
		if err != nil {
			return err
		}
		if env.EventType != EventTypeUserAction {
			logger.Debug("ignoring event", logging.String("event_type", env.EventType))
			return nil
		}
		var e profile.ActionEvent
		if err := env.DecodePayload(&e); err != nil {
			return err
		}
		if err := rec.RecordAction(ctx, e); err != nil {
			if errors.IsCode(err, errors.CodeInvalidAction) {
				return errors.Wrap(err, errors.ErrCodeValidation, "action rejected")
			}
			return err
		}
		logger.Debug("action applied", logging.UserID(e.UserID), logging.String("action", string(e.Action)))
		return nil
	}
}

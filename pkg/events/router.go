// Package events carries engagement events over watermill.
//
// Every completed engagement is published on TopicEngagements. By default the transport is an
// in-process GoChannel; with Settings.Enabled it is a Redis Stream, so other processes can
// consume the same events through their own consumer group. Events never contain conversation
// content.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const TopicEngagements = "engagements"

// EngagementEvent summarizes one handled /engage request.
type EngagementEvent struct {
	RequestID    string    `json:"request_id"`
	Coordinate   string    `json:"coordinate"`
	Mode         string    `json:"mode"`
	Fallback     bool      `json:"fallback"`
	PromptTokens int       `json:"prompt_tokens"`
	DurationMS   int64     `json:"duration_ms"`
	At           time.Time `json:"at"`
}

// Publisher is what the engage service needs from the event stream.
type Publisher interface {
	PublishEngagement(ctx context.Context, ev EngagementEvent) error
}

// Router owns the watermill router plus the publisher/subscriber pair it runs on.
type Router struct {
	router     *message.Router
	publisher  message.Publisher
	subscriber message.Subscriber
	redis      *redis.Client
	logger     zerolog.Logger
}

// BuildRouter constructs a Router backed by Redis Streams when enabled, in-memory otherwise.
func BuildRouter(ctx context.Context, s Settings, logger zerolog.Logger) (*Router, error) {
	wlogger := newWatermillLogger(logger)

	r := &Router{logger: logger}

	if s.Enabled {
		client := redis.NewClient(&redis.Options{Addr: s.Addr})
		if err := EnsureGroupAtTail(ctx, client, TopicEngagements, s.Group); err != nil {
			_ = client.Close()
			return nil, errors.Wrap(err, "ensure redis consumer group")
		}
		marshaler := rstream.DefaultMarshallerUnmarshaller{}

		pub, err := rstream.NewPublisher(rstream.PublisherConfig{
			Client:     client,
			Marshaller: marshaler,
		}, wlogger)
		if err != nil {
			_ = client.Close()
			return nil, errors.Wrap(err, "redis publisher")
		}
		sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
			Client:        client,
			Unmarshaller:  marshaler,
			ConsumerGroup: s.Group,
			Consumer:      s.Consumer,
		}, wlogger)
		if err != nil {
			_ = pub.Close()
			_ = client.Close()
			return nil, errors.Wrap(err, "redis subscriber")
		}
		r.publisher, r.subscriber, r.redis = pub, sub, client
	} else {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wlogger)
		r.publisher, r.subscriber = ch, ch
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 5 * time.Second}, wlogger)
	if err != nil {
		_ = r.closeTransport()
		return nil, errors.Wrap(err, "watermill router")
	}
	r.router = router

	return r, nil
}

// EnsureGroupAtTail creates the consumer group at the stream tail ($) if it does not exist yet,
// so a fresh consumer does not replay the full history.
func EnsureGroupAtTail(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return err
	}
	return nil
}

// AddEngagementHandler registers h for every event on TopicEngagements.
// Messages that do not decode are logged and dropped.
func (r *Router) AddEngagementHandler(name string, h func(EngagementEvent) error) {
	r.router.AddNoPublisherHandler(name, TopicEngagements, r.subscriber, func(msg *message.Message) error {
		var ev EngagementEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			r.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping undecodable engagement event")
			return nil
		}
		return h(ev)
	})
}

func (r *Router) PublishEngagement(ctx context.Context, ev EngagementEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal engagement event")
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if ev.RequestID != "" {
		msg.Metadata.Set("request_id", ev.RequestID)
	}
	if err := r.publisher.Publish(TopicEngagements, msg); err != nil {
		return errors.Wrap(err, "publish engagement event")
	}
	return nil
}

// Run blocks until ctx is cancelled or the router is closed.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running is closed once all handlers are subscribed.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

func (r *Router) Close() error {
	err := r.router.Close()
	if cerr := r.closeTransport(); err == nil {
		err = cerr
	}
	return err
}

func (r *Router) closeTransport() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.publisher != nil {
		keep(r.publisher.Close())
	}
	if r.subscriber != nil {
		keep(r.subscriber.Close())
	}
	if r.redis != nil {
		keep(r.redis.Close())
	}
	return firstErr
}

// NewLogHandler logs every engagement event at info level.
func NewLogHandler(logger zerolog.Logger) func(EngagementEvent) error {
	return func(ev EngagementEvent) error {
		logger.Info().
			Str("request_id", ev.RequestID).
			Str("coordinate", ev.Coordinate).
			Str("mode", ev.Mode).
			Bool("fallback", ev.Fallback).
			Int("prompt_tokens", ev.PromptTokens).
			Int64("duration_ms", ev.DurationMS).
			Msg("engagement")
		return nil
	}
}

var _ Publisher = (*Router)(nil)

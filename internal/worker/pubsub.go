package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the refresh subscription.
const (
	JobSnapshotRefresh = "snapshot_refresh"
	JobHealthCheck     = "health_check"
)

var (
	// ErrMalformedMessage is returned for payloads that are not a RefreshMessage.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrUnknownJob is returned for an unrecognised job type.
	ErrUnknownJob = errors.New("unknown job type")
)

// RefreshMessage is the Pub/Sub payload.
type RefreshMessage struct {
	JobType string `json:"job_type"`
	// Invalidate drops the cached snapshot before recomputing.
	Invalidate bool `json:"invalidate,omitempty"`
}

// Invalidator drops the cached snapshot.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Dispatcher runs the job a message asks for.
type Dispatcher struct {
	job         *RefreshJob
	invalidator Invalidator
	logger      zerolog.Logger
}

// NewDispatcher creates a Dispatcher. invalidator may be nil.
func NewDispatcher(job *RefreshJob, invalidator Invalidator, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, invalidator: invalidator, logger: logger}
}

// Dispatch decodes data and runs the job.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch msg.JobType {
	case JobSnapshotRefresh:
		if msg.Invalidate && d.invalidator != nil {
			d.invalidator.Invalidate(ctx)
		}
		return d.job.Run(ctx).Err
	case JobHealthCheck:
		return d.job.HealthCheck()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

// PubSubHandler feeds messages from a subscription to a Dispatcher.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler connects to Pub/Sub.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	// Refreshes are serialized by the job; more outstanding messages would
	// only queue behind the lock.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 2
	subscriber.ReceiveSettings.MaxExtension = time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start processes messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().Str("subscription", h.subscriptionName).Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	start := time.Now()
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Time("publish_time", msg.PublishTime).
		Logger()

	err := h.dispatcher.Dispatch(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrUnknownJob):
		// Redelivery cannot fix these.
		logger.Warn().Err(err).Msg("dropping message")
		msg.Ack()
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	default:
		logger.Info().Dur("duration", time.Since(start)).Msg("job completed")
		msg.Ack()
	}
}

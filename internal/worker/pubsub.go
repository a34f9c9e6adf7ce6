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

// Job types carried in FetchMessage.JobType.
const (
	JobStationFetch = "station_fetch"
	JobHealthCheck  = "health_check"
)

// ErrUnknownJob is returned by Dispatch for an unrecognised job type.
var ErrUnknownJob = errors.New("unknown job type")

// Invalidator drops cached responses before a forced fetch.
type Invalidator interface {
	Invalidate()
}

// PubSubHandler handles Pub/Sub messages for the worker.
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

// FetchMessage represents a worker job message.
type FetchMessage struct {
	JobType string `json:"job_type"`

	// Lines restricts a station fetch to these line identifiers.
	Lines []string `json:"lines,omitempty"`

	// Invalidate drops cached responses before fetching.
	Invalidate bool `json:"invalidate,omitempty"`
}

// Dispatcher runs the job named by a message.
type Dispatcher struct {
	job         *FetchJob
	invalidator Invalidator
	health      StationFetcher
	logger      zerolog.Logger
}

// DispatcherConfig holds configuration for a Dispatcher.
type DispatcherConfig struct {
	Job *FetchJob

	// Invalidator is called for messages with Invalidate set. Optional.
	Invalidator Invalidator

	// HealthFetcher is queried by health checks. It should bypass any cache.
	// Defaults to the job's fetcher.
	HealthFetcher StationFetcher

	Logger zerolog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	health := cfg.HealthFetcher
	if health == nil {
		health = cfg.Job.fetcher
	}
	return &Dispatcher{
		job:         cfg.Job,
		invalidator: cfg.Invalidator,
		health:      health,
		logger:      cfg.Logger,
	}
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// One job at a time; a full fetch can take minutes.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.dispatcher.Dispatch(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrUnknownJob):
		// Ack unknown messages to prevent redelivery
		logger.Warn().Err(err).Msg("dropping message")
		msg.Ack()
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	default:
		msg.Ack()
	}
}

// Dispatch decodes a job message and runs it.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	startTime := time.Now()

	var msg FetchMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parse message: %w", err)
	}

	var err error
	switch msg.JobType {
	case JobStationFetch:
		err = d.stationFetch(ctx, msg)
	case JobHealthCheck:
		err = d.healthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
	if err != nil {
		return err
	}

	d.logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return nil
}

func (d *Dispatcher) stationFetch(ctx context.Context, msg FetchMessage) error {
	if msg.Invalidate && d.invalidator != nil {
		d.invalidator.Invalidate()
		d.logger.Info().Msg("dropped cached station data")
	}

	result := d.job.RunConfig(ctx, d.job.Config().WithTargets(msg.Lines))

	// Consider it successful unless failures outnumber successes.
	if result.Failed > result.Successful+result.NoData {
		return fmt.Errorf("too many fetch failures: %d/%d", result.Failed, result.TotalTargets)
	}
	return nil
}

// healthTarget is a one-row directory query used to check the upstream API.
var healthTarget = FetchTarget{Line: "공항철도", Window: 1, Priority: 1}

func (d *Dispatcher) healthCheck(ctx context.Context) error {
	d.logger.Debug().Msg("running health check")

	check := NewFetchJob(FetchJobConfig{
		Config: FetchConfig{
			Targets:       []FetchTarget{healthTarget},
			Concurrency:   1,
			Timeout:       10 * time.Second,
			FetchStations: true,
		},
		Logger:  d.logger,
		Fetcher: d.health,
	})

	result := check.Run(ctx)
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
	}

	d.logger.Debug().Msg("health check passed")
	return nil
}

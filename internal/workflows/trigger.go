// Package workflows hands generation jobs to background workers through a Redis stream.
// Enqueue returns as soon as the job is appended; nothing here waits for a worker.
package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// JobType names a generation workflow.
type JobType string

const (
	JobTitle       JobType = "title"
	JobDescription JobType = "description"
	JobThumbnail   JobType = "thumbnail"
)

const (
	defaultEnqueueTimeout = 3 * time.Second
	defaultStreamMaxLen   = 10000
)

var (
	ErrUnknownJobType = errors.New("workflows: unknown job type")

	errMissingClient = errors.New("workflows: redis client is required")
	errMissingStream = errors.New("workflows: stream name is required")
)

// ParseJobType validates raw input and returns a JobType.
func ParseJobType(raw string) (JobType, error) {
	switch JobType(strings.ToLower(strings.TrimSpace(raw))) {
	case JobTitle:
		return JobTitle, nil
	case JobDescription:
		return JobDescription, nil
	case JobThumbnail:
		return JobThumbnail, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownJobType, raw)
	}
}

// JobHandle identifies an enqueued job.
type JobHandle struct {
	ID         string
	Type       JobType
	StreamID   string
	EnqueuedAt time.Time
}

// StreamAppender is the subset of the go-redis client used to enqueue jobs.
type StreamAppender interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// RedisTriggerConfig describes a RedisTrigger.
type RedisTriggerConfig struct {
	Client  StreamAppender
	Stream  string
	MaxLen  int64
	Timeout time.Duration
	Clock   func() time.Time
	NewID   func() (uuid.UUID, error)
	Logger  *zap.Logger
}

// RedisTrigger appends jobs to a capped Redis stream.
type RedisTrigger struct {
	client  StreamAppender
	stream  string
	maxLen  int64
	timeout time.Duration
	clock   func() time.Time
	newID   func() (uuid.UUID, error)
	logger  *zap.Logger
}

func NewRedisTrigger(cfg RedisTriggerConfig) (*RedisTrigger, error) {
	if cfg.Client == nil {
		return nil, errMissingClient
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errMissingStream
	}
	trigger := &RedisTrigger{
		client:  cfg.Client,
		stream:  stream,
		maxLen:  cfg.MaxLen,
		timeout: cfg.Timeout,
		clock:   cfg.Clock,
		newID:   cfg.NewID,
		logger:  cfg.Logger,
	}
	if trigger.maxLen <= 0 {
		trigger.maxLen = defaultStreamMaxLen
	}
	if trigger.timeout <= 0 {
		trigger.timeout = defaultEnqueueTimeout
	}
	if trigger.clock == nil {
		trigger.clock = time.Now
	}
	if trigger.newID == nil {
		trigger.newID = uuid.NewV7
	}
	if trigger.logger == nil {
		trigger.logger = zap.NewNop()
	}
	return trigger, nil
}

// Enqueue appends one job to the stream and returns its handle.
func (t *RedisTrigger) Enqueue(ctx context.Context, jobType JobType, payload map[string]string) (JobHandle, error) {
	if _, err := ParseJobType(string(jobType)); err != nil {
		return JobHandle{}, err
	}
	id, err := t.newID()
	if err != nil {
		return JobHandle{}, fmt.Errorf("generate job id: %w", err)
	}
	handle := JobHandle{
		ID:         id.String(),
		Type:       jobType,
		EnqueuedAt: t.clock().UTC(),
	}
	values, err := streamValues(handle, payload)
	if err != nil {
		return JobHandle{}, err
	}

	enqueueCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	streamID, err := t.client.XAdd(enqueueCtx, &redis.XAddArgs{
		Stream: t.stream,
		MaxLen: t.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		t.logger.Error("workflow enqueue failed",
			zap.String("stream", t.stream),
			zap.String("job_id", handle.ID),
			zap.String("job_type", string(jobType)),
			zap.Error(err))
		return JobHandle{}, fmt.Errorf("append to stream %s: %w", t.stream, err)
	}
	handle.StreamID = streamID

	t.logger.Info("workflow job enqueued",
		zap.String("stream", t.stream),
		zap.String("stream_id", streamID),
		zap.String("job_id", handle.ID),
		zap.String("job_type", string(jobType)))
	return handle, nil
}

// streamValues flattens a job into stream entry fields. Workers decode payload as JSON.
func streamValues(handle JobHandle, payload map[string]string) (map[string]any, error) {
	if payload == nil {
		payload = map[string]string{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode job payload: %w", err)
	}
	return map[string]any{
		"job_id":         handle.ID,
		"job_type":       string(handle.Type),
		"payload":        string(encoded),
		"enqueued_at_ms": strconv.FormatInt(handle.EnqueuedAt.UnixMilli(), 10),
	}, nil
}

// NewRedisClient connects to address, which is either host:port or a redis:// URL.
func NewRedisClient(address string) (*redis.Client, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, errMissingClient
	}
	if strings.Contains(trimmed, "://") {
		options, err := redis.ParseURL(trimmed)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(options), nil
	}
	return redis.NewClient(&redis.Options{Addr: trimmed}), nil
}

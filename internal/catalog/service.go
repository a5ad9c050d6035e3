package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/reel/internal/pagination"
	"github.com/MarcoPoloResearchLab/reel/internal/storage"
	"github.com/MarcoPoloResearchLab/reel/internal/workflows"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxIdentifierLength = 190

var noOpLogger = zap.NewNop()

// UploadSigner hands out direct-to-storage upload URLs.
type UploadSigner interface {
	SignedUploadURL(ctx context.Context, objectName, contentType string) (storage.UploadTicket, error)
}

// JobTrigger enqueues asynchronous work without waiting for it to complete.
type JobTrigger interface {
	Enqueue(ctx context.Context, jobType workflows.JobType, payload map[string]string) (workflows.JobHandle, error)
}

// ServiceConfig describes the dependencies of the catalog service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
	Uploads    UploadSigner
	Jobs       JobTrigger
}

// Service owns the video catalog: entity mutations, reactions, aggregates and feeds.
// It keeps no per-request state; every call reads and writes through the database.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
	uploads    UploadSigner
	jobs       JobTrigger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		uploads:    cfg.Uploads,
		jobs:       cfg.Jobs,
	}, nil
}

func (s *Service) ready(operation string) error {
	if s == nil || s.db == nil {
		s.logError(operation, "missing_database", errMissingDatabase)
		return newServiceError(operation, "missing_database", errMissingDatabase)
	}
	return nil
}

func (s *Service) nowMillis() int64 {
	return s.clock().UTC().UnixMilli()
}

func (s *Service) newID(operation string) (string, error) {
	if s.idProvider == nil {
		return "", newServiceError(operation, "missing_id_provider", errMissingIDProvider)
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return "", s.storeFailure(operation, "id_generation_failed", err)
	}
	return id, nil
}

// storeFailure logs an unexpected failure and wraps it in a ServiceError.
func (s *Service) storeFailure(operation, reason string, err error, fields ...zap.Field) error {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return err
	}
	s.logError(operation, reason, err, fields...)
	return newServiceError(operation, reason, err)
}

// invalidPage converts pagination validation failures into client faults.
func invalidPage(operation string, err error) error {
	reason := "invalid_page"
	switch {
	case errors.Is(err, pagination.ErrInvalidLimit):
		reason = "invalid_limit"
	case errors.Is(err, pagination.ErrInvalidCursor):
		reason = "invalid_cursor"
	}
	return newServiceError(operation, reason, fmt.Errorf("%w: %w", ErrInvalidInput, err))
}

func validateIdentifier(operation, field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fault(operation, "missing_"+field, ErrInvalidInput, field+" is required")
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fault(operation, "invalid_"+field, ErrInvalidInput, fmt.Sprintf("%s exceeds %d characters", field, maxIdentifierLength))
	}
	return trimmed, nil
}

func requireViewer(operation, viewerID string) (string, error) {
	trimmed := strings.TrimSpace(viewerID)
	if trimmed == "" {
		return "", newServiceError(operation, "missing_viewer", fmt.Errorf("%w: %v", ErrInvalidInput, errMissingViewer))
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fault(operation, "invalid_viewer", ErrInvalidInput, "viewer identifier too long")
	}
	return trimmed, nil
}

// visibleVideos restricts videos to those the viewer may see: public videos plus
// the viewer's own. Anonymous viewers only see public videos.
func visibleVideos(query *gorm.DB, viewerID string) *gorm.DB {
	if viewerID == "" {
		return query.Where("videos.visibility = ?", VisibilityPublic)
	}
	return query.Where("(videos.visibility = ? OR videos.user_id = ?)", VisibilityPublic, viewerID)
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("catalog service error", attrs...)
}

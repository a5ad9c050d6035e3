package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/reel/internal/storage"
	"github.com/MarcoPoloResearchLab/reel/internal/workflows"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultVideoTitle      = "New Video"
	defaultUploadType      = "video/mp4"
	maxTitleLength         = 200
	maxDescriptionLength   = 5000
	maxThumbnailURLLength  = 512
	minThumbnailPromptSize = 10
)

// VideoDraft describes a new upload.
type VideoDraft struct {
	Title       string
	Description string
	CategoryID  *int64
	Visibility  Visibility
	ContentType string
}

// CreatedVideo is a freshly created video and, when storage is configured, the
// ticket the client uses to upload the media directly.
type CreatedVideo struct {
	Video  Video
	Upload *storage.UploadTicket
}

// VideoPatch lists the editable fields of a video; nil fields are left untouched.
type VideoPatch struct {
	Title         *string
	Description   *string
	CategoryID    *int64
	ClearCategory bool
	Visibility    *Visibility
	ThumbnailURL  *string
}

// VideoDetail is a single video as shown on its watch page.
type VideoDetail struct {
	VideoCard
	OwnerSubscriberCount int64 `gorm:"column:owner_subscriber_count"`
	ViewerSubscribed     bool  `gorm:"column:viewer_subscribed"`
}

// CreateVideo registers a video owned by ownerID. New videos are private until edited.
func (s *Service) CreateVideo(ctx context.Context, ownerID string, draft VideoDraft) (CreatedVideo, error) {
	if err := s.ready(opCreateVideo); err != nil {
		return CreatedVideo{}, err
	}
	owner, err := requireViewer(opCreateVideo, ownerID)
	if err != nil {
		return CreatedVideo{}, err
	}

	title := strings.TrimSpace(draft.Title)
	if title == "" {
		title = defaultVideoTitle
	}
	if err := checkLength(opCreateVideo, "title", title, maxTitleLength); err != nil {
		return CreatedVideo{}, err
	}
	description := strings.TrimSpace(draft.Description)
	if err := checkLength(opCreateVideo, "description", description, maxDescriptionLength); err != nil {
		return CreatedVideo{}, err
	}
	visibility := VisibilityPrivate
	if draft.Visibility != "" {
		parsed, err := ParseVisibility(string(draft.Visibility))
		if err != nil {
			return CreatedVideo{}, newServiceError(opCreateVideo, "invalid_visibility", err)
		}
		visibility = parsed
	}
	contentType := strings.TrimSpace(draft.ContentType)
	if contentType == "" {
		contentType = defaultUploadType
	}
	if !strings.HasPrefix(contentType, "video/") {
		return CreatedVideo{}, fault(opCreateVideo, "invalid_content_type", ErrInvalidInput, contentType)
	}

	id, err := s.newID(opCreateVideo)
	if err != nil {
		return CreatedVideo{}, err
	}
	objectName := fmt.Sprintf("videos/%s/%s", owner, id)

	var ticket *storage.UploadTicket
	if s.uploads != nil {
		issued, err := s.uploads.SignedUploadURL(ctx, objectName, contentType)
		if err != nil {
			return CreatedVideo{}, s.storeFailure(opCreateVideo, "upload_signing_failed", err,
				zap.String("user_id", owner),
				zap.String("video_id", id))
		}
		ticket = &issued
	}

	now := s.nowMillis()
	video := Video{
		ID:              id,
		UserID:          owner,
		CategoryID:      draft.CategoryID,
		Title:           title,
		Description:     description,
		Visibility:      visibility,
		UploadObject:    objectName,
		CreatedAtMillis: now,
		UpdatedAtMillis: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := categoryExists(tx, opCreateVideo, draft.CategoryID); err != nil {
			return err
		}
		return tx.Create(&video).Error
	})
	if err != nil {
		return CreatedVideo{}, s.storeFailure(opCreateVideo, "persist_failed", err,
			zap.String("user_id", owner),
			zap.String("video_id", id))
	}
	return CreatedVideo{Video: video, Upload: ticket}, nil
}

// UpdateVideo applies patch to a video owned by callerID and bumps its updated timestamp.
func (s *Service) UpdateVideo(ctx context.Context, callerID, videoID string, patch VideoPatch) (Video, error) {
	if err := s.ready(opUpdateVideo); err != nil {
		return Video{}, err
	}
	caller, err := requireViewer(opUpdateVideo, callerID)
	if err != nil {
		return Video{}, err
	}
	id, err := validateIdentifier(opUpdateVideo, "video_id", videoID)
	if err != nil {
		return Video{}, err
	}
	updates, err := patch.updates()
	if err != nil {
		return Video{}, err
	}

	var video Video
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := ownedVideo(tx, opUpdateVideo, caller, id)
		if err != nil {
			return err
		}
		if !patch.ClearCategory {
			if err := categoryExists(tx, opUpdateVideo, patch.CategoryID); err != nil {
				return err
			}
		}
		updates["updated_at_ms"] = s.nowMillis()
		if err := tx.Model(&Video{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", existing.ID).First(&video).Error
	})
	if err != nil {
		return Video{}, s.storeFailure(opUpdateVideo, "persist_failed", err,
			zap.String("user_id", caller),
			zap.String("video_id", id))
	}
	return video, nil
}

func (p VideoPatch) updates() (map[string]any, error) {
	updates := make(map[string]any)
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, fault(opUpdateVideo, "missing_title", ErrInvalidInput, "title cannot be blank")
		}
		if err := checkLength(opUpdateVideo, "title", title, maxTitleLength); err != nil {
			return nil, err
		}
		updates["title"] = title
	}
	if p.Description != nil {
		description := strings.TrimSpace(*p.Description)
		if err := checkLength(opUpdateVideo, "description", description, maxDescriptionLength); err != nil {
			return nil, err
		}
		updates["description"] = description
	}
	switch {
	case p.ClearCategory:
		updates["category_id"] = nil
	case p.CategoryID != nil:
		updates["category_id"] = *p.CategoryID
	}
	if p.Visibility != nil {
		visibility, err := ParseVisibility(string(*p.Visibility))
		if err != nil {
			return nil, newServiceError(opUpdateVideo, "invalid_visibility", err)
		}
		updates["visibility"] = visibility
	}
	if p.ThumbnailURL != nil {
		thumbnail := strings.TrimSpace(*p.ThumbnailURL)
		if err := checkLength(opUpdateVideo, "thumbnail_url", thumbnail, maxThumbnailURLLength); err != nil {
			return nil, err
		}
		updates["thumbnail_url"] = thumbnail
	}
	if len(updates) == 0 {
		return nil, fault(opUpdateVideo, "empty_patch", ErrInvalidInput, "no fields to update")
	}
	return updates, nil
}

// RemoveVideo deletes a video owned by callerID together with its views, reactions,
// comments and playlist memberships.
func (s *Service) RemoveVideo(ctx context.Context, callerID, videoID string) error {
	if err := s.ready(opRemoveVideo); err != nil {
		return err
	}
	caller, err := requireViewer(opRemoveVideo, callerID)
	if err != nil {
		return err
	}
	id, err := validateIdentifier(opRemoveVideo, "video_id", videoID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ownedVideo(tx, opRemoveVideo, caller, id); err != nil {
			return err
		}
		comments := tx.Model(&Comment{}).Select("id").Where("video_id = ?", id)
		steps := []struct {
			condition string
			arg       any
			model     any
		}{
			{"comment_id IN (?)", comments, &CommentReaction{}},
			{"video_id = ?", id, &Comment{}},
			{"video_id = ?", id, &VideoReaction{}},
			{"video_id = ?", id, &VideoView{}},
			{"video_id = ?", id, &PlaylistVideo{}},
			{"id = ?", id, &Video{}},
		}
		for _, step := range steps {
			if err := tx.Where(step.condition, step.arg).Delete(step.model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.storeFailure(opRemoveVideo, "persist_failed", err,
			zap.String("user_id", caller),
			zap.String("video_id", id))
	}
	return nil
}

// GetVideo returns a visible video with aggregates, the viewer's reaction and whether
// the viewer follows its owner.
func (s *Service) GetVideo(ctx context.Context, viewerID, videoID string) (VideoDetail, error) {
	if err := s.ready(opGetVideo); err != nil {
		return VideoDetail{}, err
	}
	id, err := validateIdentifier(opGetVideo, "video_id", videoID)
	if err != nil {
		return VideoDetail{}, err
	}
	viewer := strings.TrimSpace(viewerID)

	query := s.videoCards(ctx, viewer, func(p *projection) {
		p.add("(SELECT COUNT(*) FROM subscriptions fans WHERE fans.creator_id = videos.user_id) AS owner_subscriber_count")
		if viewer == "" {
			p.add("FALSE AS viewer_subscribed")
			return
		}
		p.add("EXISTS (SELECT 1 FROM subscriptions mine WHERE mine.creator_id = videos.user_id AND mine.viewer_id = ?) AS viewer_subscribed", viewer)
	}).Where("videos.id = ?", id)

	var rows []VideoDetail
	if err := visibleVideos(query, viewer).Limit(1).Scan(&rows).Error; err != nil {
		return VideoDetail{}, s.storeFailure(opGetVideo, "query_failed", err, zap.String("video_id", id))
	}
	if len(rows) == 0 {
		return VideoDetail{}, fault(opGetVideo, "video_not_found", ErrNotFound, id)
	}
	return rows[0], nil
}

// RecordView stores that viewerID watched a visible video. Repeated views refresh the
// view time; they never alter the video itself.
func (s *Service) RecordView(ctx context.Context, viewerID, videoID string) error {
	if err := s.ready(opRecordView); err != nil {
		return err
	}
	viewer, err := requireViewer(opRecordView, viewerID)
	if err != nil {
		return err
	}
	id, err := validateIdentifier(opRecordView, "video_id", videoID)
	if err != nil {
		return err
	}

	now := s.nowMillis()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		visible, err := videoAggregates.visible(tx, id, viewer)
		if err != nil {
			return err
		}
		if !visible {
			return fault(opRecordView, "video_not_found", ErrNotFound, id)
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "video_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"viewed_at_ms"}),
		}).Create(&VideoView{UserID: viewer, VideoID: id, ViewedAtMillis: now}).Error
	})
	if err != nil {
		return s.storeFailure(opRecordView, "persist_failed", err,
			zap.String("user_id", viewer),
			zap.String("video_id", id))
	}
	return nil
}

// TriggerWorkflow enqueues an asynchronous generation job for a video owned by
// callerID and returns without waiting for it.
func (s *Service) TriggerWorkflow(ctx context.Context, callerID, videoID string, jobType workflows.JobType, prompt string) (workflows.JobHandle, error) {
	if err := s.ready(opTriggerWorkflow); err != nil {
		return workflows.JobHandle{}, err
	}
	if s.jobs == nil {
		s.logError(opTriggerWorkflow, "missing_job_trigger", errMissingTrigger)
		return workflows.JobHandle{}, newServiceError(opTriggerWorkflow, "missing_job_trigger", errMissingTrigger)
	}
	caller, err := requireViewer(opTriggerWorkflow, callerID)
	if err != nil {
		return workflows.JobHandle{}, err
	}
	id, err := validateIdentifier(opTriggerWorkflow, "video_id", videoID)
	if err != nil {
		return workflows.JobHandle{}, err
	}
	if _, err := workflows.ParseJobType(string(jobType)); err != nil {
		return workflows.JobHandle{}, fault(opTriggerWorkflow, "invalid_job_type", ErrInvalidInput, err.Error())
	}

	payload := map[string]string{
		"user_id":  caller,
		"video_id": id,
	}
	if jobType == workflows.JobThumbnail {
		trimmed := strings.TrimSpace(prompt)
		if utf8.RuneCountInString(trimmed) < minThumbnailPromptSize {
			return workflows.JobHandle{}, fault(opTriggerWorkflow, "invalid_prompt", ErrInvalidInput,
				fmt.Sprintf("prompt must be at least %d characters", minThumbnailPromptSize))
		}
		payload["prompt"] = trimmed
	}

	if _, err := ownedVideo(s.db.WithContext(ctx), opTriggerWorkflow, caller, id); err != nil {
		return workflows.JobHandle{}, s.storeFailure(opTriggerWorkflow, "query_failed", err, zap.String("video_id", id))
	}

	handle, err := s.jobs.Enqueue(ctx, jobType, payload)
	if err != nil {
		return workflows.JobHandle{}, s.storeFailure(opTriggerWorkflow, "enqueue_failed", err,
			zap.String("user_id", caller),
			zap.String("video_id", id),
			zap.String("job_type", string(jobType)))
	}
	return handle, nil
}

// ownedVideo loads a video the caller may mutate. A video owned by someone else is
// Forbidden when the caller can see it and NotFound otherwise.
func ownedVideo(tx *gorm.DB, operation, callerID, videoID string) (Video, error) {
	var video Video
	result := tx.Where("id = ?", videoID).Limit(1).Find(&video)
	if result.Error != nil {
		return Video{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Video{}, fault(operation, "video_not_found", ErrNotFound, videoID)
	}
	if video.UserID != callerID {
		if video.Visibility == VisibilityPublic {
			return Video{}, fault(operation, "not_owner", ErrForbidden, videoID)
		}
		return Video{}, fault(operation, "video_not_found", ErrNotFound, videoID)
	}
	return video, nil
}

func categoryExists(tx *gorm.DB, operation string, categoryID *int64) error {
	if categoryID == nil {
		return nil
	}
	var count int64
	if err := tx.Model(&Category{}).Where("id = ?", *categoryID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fault(operation, "unknown_category", ErrInvalidInput, fmt.Sprintf("category %d", *categoryID))
	}
	return nil
}

func checkLength(operation, field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return fault(operation, "invalid_"+field, ErrInvalidInput, fmt.Sprintf("%s exceeds %d characters", field, limit))
	}
	return nil
}

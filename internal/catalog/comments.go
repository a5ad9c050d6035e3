package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxCommentLength = 2000

// CreateComment adds a comment by callerID to a visible video. A non-nil parentID
// makes it a reply; replies attach to top-level comments of the same video only.
func (s *Service) CreateComment(ctx context.Context, callerID, videoID string, parentID *string, value string) (Comment, error) {
	if err := s.ready(opCreateComment); err != nil {
		return Comment{}, err
	}
	caller, err := requireViewer(opCreateComment, callerID)
	if err != nil {
		return Comment{}, err
	}
	video, err := validateIdentifier(opCreateComment, "video_id", videoID)
	if err != nil {
		return Comment{}, err
	}
	var parent *string
	if parentID != nil {
		trimmed, err := validateIdentifier(opCreateComment, "parent_id", *parentID)
		if err != nil {
			return Comment{}, err
		}
		parent = &trimmed
	}
	body := strings.TrimSpace(value)
	if body == "" {
		return Comment{}, fault(opCreateComment, "missing_value", ErrInvalidInput, "comment cannot be blank")
	}
	if err := checkLength(opCreateComment, "value", body, maxCommentLength); err != nil {
		return Comment{}, err
	}

	id, err := s.newID(opCreateComment)
	if err != nil {
		return Comment{}, err
	}
	now := s.nowMillis()
	comment := Comment{
		ID:              id,
		UserID:          caller,
		VideoID:         video,
		ParentID:        parent,
		Value:           body,
		CreatedAtMillis: now,
		UpdatedAtMillis: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		visible, err := videoAggregates.visible(tx, video, caller)
		if err != nil {
			return err
		}
		if !visible {
			return fault(opCreateComment, "video_not_found", ErrNotFound, video)
		}
		if parent != nil {
			if err := validateParent(tx, video, *parent); err != nil {
				return err
			}
		}
		return tx.Create(&comment).Error
	})
	if err != nil {
		return Comment{}, s.storeFailure(opCreateComment, "persist_failed", err,
			zap.String("user_id", caller),
			zap.String("video_id", video))
	}
	return comment, nil
}

func validateParent(tx *gorm.DB, videoID, parentID string) error {
	var parent Comment
	result := tx.Where("id = ?", parentID).Limit(1).Find(&parent)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fault(opCreateComment, "parent_not_found", ErrNotFound, parentID)
	}
	if parent.VideoID != videoID {
		return fault(opCreateComment, "parent_mismatch", ErrInvalidInput, "parent belongs to another video")
	}
	if parent.ParentID != nil {
		return fault(opCreateComment, "nested_reply", ErrInvalidInput, "replies cannot be nested")
	}
	return nil
}

// RemoveComment deletes a comment owned by callerID with its replies and reactions.
func (s *Service) RemoveComment(ctx context.Context, callerID, commentID string) error {
	if err := s.ready(opRemoveComment); err != nil {
		return err
	}
	caller, err := requireViewer(opRemoveComment, callerID)
	if err != nil {
		return err
	}
	id, err := validateIdentifier(opRemoveComment, "comment_id", commentID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment Comment
		result := tx.Where("id = ?", id).Limit(1).Find(&comment)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fault(opRemoveComment, "comment_not_found", ErrNotFound, id)
		}
		if comment.UserID != caller {
			visible, err := videoAggregates.visible(tx, comment.VideoID, caller)
			if err != nil {
				return err
			}
			if visible {
				return fault(opRemoveComment, "not_owner", ErrForbidden, id)
			}
			return fault(opRemoveComment, "comment_not_found", ErrNotFound, id)
		}

		thread := tx.Model(&Comment{}).Select("id").Where("id = ? OR parent_id = ?", id, id)
		if err := tx.Where("comment_id IN (?)", thread).Delete(&CommentReaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("parent_id = ?", id).Delete(&Comment{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Comment{}).Error
	})
	if err != nil {
		return s.storeFailure(opRemoveComment, "persist_failed", err,
			zap.String("user_id", caller),
			zap.String("comment_id", id))
	}
	return nil
}

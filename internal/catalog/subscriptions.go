package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Channel is a creator profile with follower and upload counts.
type Channel struct {
	ID               string `gorm:"column:id"`
	Name             string `gorm:"column:name"`
	ImageURL         string `gorm:"column:image_url"`
	SubscriberCount  int64  `gorm:"column:subscriber_count"`
	VideoCount       int64  `gorm:"column:video_count"`
	ViewerSubscribed bool   `gorm:"column:viewer_subscribed"`
}

// Subscribe makes viewerID follow creatorID.
func (s *Service) Subscribe(ctx context.Context, viewerID, creatorID string) (Subscription, error) {
	if err := s.ready(opSubscribe); err != nil {
		return Subscription{}, err
	}
	viewer, err := requireViewer(opSubscribe, viewerID)
	if err != nil {
		return Subscription{}, err
	}
	creator, err := validateIdentifier(opSubscribe, "creator_id", creatorID)
	if err != nil {
		return Subscription{}, err
	}
	if creator == viewer {
		return Subscription{}, fault(opSubscribe, "self_subscription", ErrInvalidInput, "cannot subscribe to yourself")
	}

	now := s.nowMillis()
	subscription := Subscription{
		ViewerID:        viewer,
		CreatorID:       creator,
		CreatedAtMillis: now,
		UpdatedAtMillis: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := channelExists(tx, creator)
		if err != nil {
			return err
		}
		if !exists {
			return fault(opSubscribe, "channel_not_found", ErrNotFound, creator)
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&subscription)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fault(opSubscribe, "already_subscribed", ErrConflict, creator)
		}
		return nil
	})
	if err != nil {
		return Subscription{}, s.storeFailure(opSubscribe, "persist_failed", err,
			zap.String("user_id", viewer),
			zap.String("creator_id", creator))
	}
	return subscription, nil
}

// Unsubscribe removes the viewer's subscription to creatorID.
func (s *Service) Unsubscribe(ctx context.Context, viewerID, creatorID string) error {
	if err := s.ready(opUnsubscribe); err != nil {
		return err
	}
	viewer, err := requireViewer(opUnsubscribe, viewerID)
	if err != nil {
		return err
	}
	creator, err := validateIdentifier(opUnsubscribe, "creator_id", creatorID)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Where("viewer_id = ? AND creator_id = ?", viewer, creator).
		Delete(&Subscription{})
	if result.Error != nil {
		return s.storeFailure(opUnsubscribe, "persist_failed", result.Error,
			zap.String("user_id", viewer),
			zap.String("creator_id", creator))
	}
	if result.RowsAffected == 0 {
		return fault(opUnsubscribe, "subscription_not_found", ErrNotFound, creator)
	}
	return nil
}

// GetChannel returns a creator profile. VideoCount only includes videos the viewer may see.
func (s *Service) GetChannel(ctx context.Context, viewerID, channelID string) (Channel, error) {
	if err := s.ready(opGetChannel); err != nil {
		return Channel{}, err
	}
	id, err := validateIdentifier(opGetChannel, "channel_id", channelID)
	if err != nil {
		return Channel{}, err
	}
	viewer := strings.TrimSpace(viewerID)

	p := newProjection(
		"users.id AS id",
		"users.name AS name",
		"users.image_url AS image_url",
		"(SELECT COUNT(*) FROM subscriptions fans WHERE fans.creator_id = users.id) AS subscriber_count",
	)
	p.add("(SELECT COUNT(*) FROM videos cv WHERE cv.user_id = users.id AND (cv.visibility = ? OR cv.user_id = ?)) AS video_count",
		VisibilityPublic, viewer)
	if viewer == "" {
		p.add("FALSE AS viewer_subscribed")
	} else {
		p.add("EXISTS (SELECT 1 FROM subscriptions mine WHERE mine.creator_id = users.id AND mine.viewer_id = ?) AS viewer_subscribed", viewer)
	}

	var rows []Channel
	if err := p.apply(s.db.WithContext(ctx).Table("users")).Where("users.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return Channel{}, s.storeFailure(opGetChannel, "query_failed", err, zap.String("channel_id", id))
	}
	if len(rows) == 0 {
		return Channel{}, fault(opGetChannel, "channel_not_found", ErrNotFound, id)
	}
	return rows[0], nil
}

// ListCategories returns every category ordered by name.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	if err := s.ready(opListCategories); err != nil {
		return nil, err
	}
	var categories []Category
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, s.storeFailure(opListCategories, "query_failed", err)
	}
	return categories, nil
}

func channelExists(tx *gorm.DB, channelID string) (bool, error) {
	var count int64
	if err := tx.Table("users").Where("id = ?", channelID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

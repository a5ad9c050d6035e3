package catalog

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reaction is the stored reaction of one user on one target.
type Reaction struct {
	UserID          string
	TargetID        string
	Kind            TargetKind
	Type            ReactionType
	UpdatedAtMillis int64
}

// ReactionResult is the outcome of SetReaction. When Removed is true the call
// cancelled an identical prior reaction and Reaction is nil.
type ReactionResult struct {
	Reaction *Reaction
	Removed  bool
}

// SetReaction toggles a like or dislike of userID on a target.
//
// Repeating the current reaction removes it, the opposite reaction replaces it in
// place, and no prior reaction inserts one. The removal is a delete conditioned on
// the type being toggled off; everything else is a single upsert keyed on
// (user, target), so concurrent toggles never produce two rows. The target's own
// updated timestamp is never touched.
func (s *Service) SetReaction(ctx context.Context, userID string, kind TargetKind, targetID string, reaction ReactionType) (ReactionResult, error) {
	if err := s.ready(opSetReaction); err != nil {
		return ReactionResult{}, err
	}
	viewer, err := requireViewer(opSetReaction, userID)
	if err != nil {
		return ReactionResult{}, err
	}
	target, err := validateIdentifier(opSetReaction, "target_id", targetID)
	if err != nil {
		return ReactionResult{}, err
	}
	source, ok := aggregateSourceFor(kind)
	if !ok {
		return ReactionResult{}, fault(opSetReaction, "invalid_target_kind", ErrInvalidInput, string(kind))
	}
	if _, err := ParseReactionType(string(reaction)); err != nil {
		return ReactionResult{}, newServiceError(opSetReaction, "invalid_reaction", err)
	}

	now := s.nowMillis()
	var result ReactionResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		visible, err := source.visible(tx, target, viewer)
		if err != nil {
			return err
		}
		if !visible {
			return fault(opSetReaction, "target_not_found", ErrNotFound, target)
		}

		removal := tx.Where("user_id = ? AND "+source.targetColumn+" = ? AND type = ?", viewer, target, reaction).
			Delete(source.emptyReaction())
		if removal.Error != nil {
			return removal.Error
		}
		if removal.RowsAffected > 0 {
			result = ReactionResult{Removed: true}
			return nil
		}

		upsert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: source.targetColumn}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "updated_at_ms"}),
		}).Create(source.reactionRow(viewer, target, reaction, now))
		if upsert.Error != nil {
			return upsert.Error
		}
		result = ReactionResult{Reaction: &Reaction{
			UserID:          viewer,
			TargetID:        target,
			Kind:            kind,
			Type:            reaction,
			UpdatedAtMillis: now,
		}}
		return nil
	})
	if err != nil {
		return ReactionResult{}, s.storeFailure(opSetReaction, "persist_failed", err,
			zap.String("user_id", viewer),
			zap.String("target_kind", string(kind)),
			zap.String("target_id", target))
	}
	return result, nil
}

func (a aggregateSource) visible(tx *gorm.DB, targetID, viewerID string) (bool, error) {
	var count int64
	query := tx.Table(a.table).Where(a.table+".id = ?", targetID)
	if err := a.restrictVisible(query, viewerID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (a aggregateSource) emptyReaction() any {
	if a.table == commentAggregates.table {
		return &CommentReaction{}
	}
	return &VideoReaction{}
}

func (a aggregateSource) reactionRow(userID, targetID string, reaction ReactionType, now int64) any {
	if a.table == commentAggregates.table {
		return &CommentReaction{
			UserID:          userID,
			CommentID:       targetID,
			Type:            reaction,
			CreatedAtMillis: now,
			UpdatedAtMillis: now,
		}
	}
	return &VideoReaction{
		UserID:          userID,
		VideoID:         targetID,
		Type:            reaction,
		CreatedAtMillis: now,
		UpdatedAtMillis: now,
	}
}

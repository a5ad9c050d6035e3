package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/reel/internal/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Aggregates are derived at read time from the view and reaction fact tables.
// Nothing here is stored, so counts always agree with the facts at query time.
type Aggregates struct {
	ViewCount      int64          `gorm:"column:view_count"`
	LikeCount      int64          `gorm:"column:like_count"`
	DislikeCount   int64          `gorm:"column:dislike_count"`
	ViewerReaction ViewerReaction `gorm:"column:viewer_reaction"`
}

// TargetAggregates pairs a target id with its aggregates.
type TargetAggregates struct {
	TargetID string `gorm:"column:target_id"`
	Aggregates
}

type aggregateSource struct {
	table          string
	reactionsTable string
	targetColumn   string
	countViews     bool
}

var (
	videoAggregates = aggregateSource{
		table:          "videos",
		reactionsTable: "video_reactions",
		targetColumn:   "video_id",
		countViews:     true,
	}
	commentAggregates = aggregateSource{
		table:          "comments",
		reactionsTable: "comment_reactions",
		targetColumn:   "comment_id",
	}
)

func aggregateSourceFor(kind TargetKind) (aggregateSource, bool) {
	switch kind {
	case TargetVideo:
		return videoAggregates, true
	case TargetComment:
		return commentAggregates, true
	default:
		return aggregateSource{}, false
	}
}

// project appends correlated count columns and the viewer reaction lookup for each
// row of the source table. An empty viewer id projects ViewerReactionNone.
func (a aggregateSource) project(p *projection, viewerID string) {
	if a.countViews {
		p.add(fmt.Sprintf("(SELECT COUNT(*) FROM video_views agg_v WHERE agg_v.video_id = %s.id) AS view_count", a.table))
	} else {
		p.add("0 AS view_count")
	}
	p.add(fmt.Sprintf("(SELECT COUNT(*) FROM %s agg_l WHERE agg_l.%s = %s.id AND agg_l.type = ?) AS like_count",
		a.reactionsTable, a.targetColumn, a.table), ReactionLike)
	p.add(fmt.Sprintf("(SELECT COUNT(*) FROM %s agg_d WHERE agg_d.%s = %s.id AND agg_d.type = ?) AS dislike_count",
		a.reactionsTable, a.targetColumn, a.table), ReactionDislike)
	if viewerID == "" {
		p.add(fmt.Sprintf("'%s' AS viewer_reaction", ViewerReactionNone))
		return
	}
	p.add(fmt.Sprintf("COALESCE((SELECT agg_r.type FROM %s agg_r WHERE agg_r.%s = %s.id AND agg_r.user_id = ?), '%s') AS viewer_reaction",
		a.reactionsTable, a.targetColumn, a.table, ViewerReactionNone), viewerID)
}

// restrictVisible drops targets the viewer may not see so their counts are never exposed.
func (a aggregateSource) restrictVisible(query *gorm.DB, viewerID string) *gorm.DB {
	if a.table == "comments" {
		query = query.Joins("JOIN videos ON videos.id = comments.video_id")
	}
	return visibleVideos(query, viewerID)
}

// projection accumulates select columns with their bind variables, in order.
type projection struct {
	columns []string
	args    []any
}

func newProjection(columns ...string) projection {
	return projection{columns: append([]string(nil), columns...)}
}

func (p *projection) add(column string, args ...any) {
	p.columns = append(p.columns, column)
	p.args = append(p.args, args...)
}

func (p projection) apply(query *gorm.DB) *gorm.DB {
	return query.Select(strings.Join(p.columns, ", "), p.args...)
}

// GetAggregates computes view, like and dislike counts plus the viewer's own reaction
// for each visible target. Targets that do not exist or are hidden from the viewer are
// absent from the result. An empty viewerID is an anonymous read.
func (s *Service) GetAggregates(ctx context.Context, kind TargetKind, targetIDs []string, viewerID string) (map[string]Aggregates, error) {
	if err := s.ready(opGetAggregates); err != nil {
		return nil, err
	}
	source, ok := aggregateSourceFor(kind)
	if !ok {
		return nil, fault(opGetAggregates, "invalid_target_kind", ErrInvalidInput, string(kind))
	}

	ids := make([]string, 0, len(targetIDs))
	seen := make(map[string]struct{}, len(targetIDs))
	for _, raw := range targetIDs {
		id, err := validateIdentifier(opGetAggregates, "target_id", raw)
		if err != nil {
			return nil, err
		}
		if _, duplicate := seen[id]; duplicate {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) > pagination.MaxLimit {
		return nil, fault(opGetAggregates, "too_many_targets", ErrInvalidInput,
			fmt.Sprintf("at most %d targets per call", pagination.MaxLimit))
	}
	result := make(map[string]Aggregates, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	viewer := strings.TrimSpace(viewerID)
	p := newProjection(source.table + ".id AS target_id")
	source.project(&p, viewer)
	query := p.apply(s.db.WithContext(ctx).Table(source.table)).
		Where(source.table+".id IN ?", ids)
	query = source.restrictVisible(query, viewer)

	var rows []TargetAggregates
	if err := query.Scan(&rows).Error; err != nil {
		return nil, s.storeFailure(opGetAggregates, "query_failed", err,
			zap.String("target_kind", string(kind)),
			zap.Int("target_count", len(ids)))
	}
	for _, row := range rows {
		result[row.TargetID] = row.Aggregates
	}
	return result, nil
}

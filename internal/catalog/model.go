package catalog

import (
	"fmt"
	"strings"
)

// Visibility controls who may see a video.
type Visibility string

const (
	// VisibilityPublic videos are listed for every viewer.
	VisibilityPublic Visibility = "public"
	// VisibilityPrivate videos are only visible to their owner.
	VisibilityPrivate Visibility = "private"
)

// ParseVisibility validates raw input and returns a Visibility.
func ParseVisibility(raw string) (Visibility, error) {
	switch Visibility(strings.ToLower(strings.TrimSpace(raw))) {
	case VisibilityPublic:
		return VisibilityPublic, nil
	case VisibilityPrivate:
		return VisibilityPrivate, nil
	default:
		return "", fmt.Errorf("%w: unknown visibility %q", ErrInvalidInput, raw)
	}
}

// ReactionType enumerates the mutually exclusive reactions a user may leave.
type ReactionType string

const (
	ReactionLike    ReactionType = "like"
	ReactionDislike ReactionType = "dislike"
)

// ParseReactionType validates raw input and returns a ReactionType.
func ParseReactionType(raw string) (ReactionType, error) {
	switch ReactionType(strings.ToLower(strings.TrimSpace(raw))) {
	case ReactionLike:
		return ReactionLike, nil
	case ReactionDislike:
		return ReactionDislike, nil
	default:
		return "", fmt.Errorf("%w: unknown reaction %q", ErrInvalidInput, raw)
	}
}

// ViewerReaction is the reaction the requesting viewer left on a target.
type ViewerReaction string

const (
	ViewerReactionNone    ViewerReaction = "none"
	ViewerReactionLike    ViewerReaction = ViewerReaction(ReactionLike)
	ViewerReactionDislike ViewerReaction = ViewerReaction(ReactionDislike)
)

// TargetKind names the entities that can receive reactions.
type TargetKind string

const (
	TargetVideo   TargetKind = "video"
	TargetComment TargetKind = "comment"
)

// Category groups videos for browsing.
type Category struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string `gorm:"column:name;size:120;not null;uniqueIndex"`
	Description string `gorm:"column:description;size:512;not null;default:''"`
}

// TableName provides the explicit table binding for GORM.
func (Category) TableName() string {
	return "categories"
}

// Video is an uploaded video owned by a channel.
type Video struct {
	ID              string     `gorm:"column:id;primaryKey;size:36"`
	UserID          string     `gorm:"column:user_id;size:190;not null;index:idx_videos_user_updated,priority:1"`
	CategoryID      *int64     `gorm:"column:category_id;index"`
	Title           string     `gorm:"column:title;size:200;not null"`
	Description     string     `gorm:"column:description;type:text;not null;default:''"`
	Visibility      Visibility `gorm:"column:visibility;size:16;not null;default:private;index:idx_videos_visibility_updated,priority:1"`
	ThumbnailURL    string     `gorm:"column:thumbnail_url;size:512;not null;default:''"`
	UploadObject    string     `gorm:"column:upload_object;size:512;not null;default:''"`
	CreatedAtMillis int64      `gorm:"column:created_at_ms;not null"`
	UpdatedAtMillis int64      `gorm:"column:updated_at_ms;not null;index:idx_videos_user_updated,priority:2;index:idx_videos_visibility_updated,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Video) TableName() string {
	return "videos"
}

// Comment is a remark on a video. Replies reference a top-level comment through ParentID.
type Comment struct {
	ID              string  `gorm:"column:id;primaryKey;size:36"`
	UserID          string  `gorm:"column:user_id;size:190;not null;index"`
	VideoID         string  `gorm:"column:video_id;size:36;not null;index:idx_comments_video_updated,priority:1"`
	ParentID        *string `gorm:"column:parent_id;size:36;index"`
	Value           string  `gorm:"column:value;type:text;not null"`
	CreatedAtMillis int64   `gorm:"column:created_at_ms;not null"`
	UpdatedAtMillis int64   `gorm:"column:updated_at_ms;not null;index:idx_comments_video_updated,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "comments"
}

// VideoView records the latest time a user watched a video.
type VideoView struct {
	UserID         string `gorm:"column:user_id;primaryKey;size:190;not null"`
	VideoID        string `gorm:"column:video_id;primaryKey;size:36;not null;index"`
	ViewedAtMillis int64  `gorm:"column:viewed_at_ms;not null"`
}

// TableName provides the explicit table binding for GORM.
func (VideoView) TableName() string {
	return "video_views"
}

// VideoReaction is a user's like or dislike of a video. The composite key enforces
// at most one reaction per (user, video).
type VideoReaction struct {
	UserID          string       `gorm:"column:user_id;primaryKey;size:190;not null;index:idx_video_reactions_user_type,priority:1"`
	VideoID         string       `gorm:"column:video_id;primaryKey;size:36;not null;index:idx_video_reactions_video_type,priority:1"`
	Type            ReactionType `gorm:"column:type;size:16;not null;index:idx_video_reactions_video_type,priority:2;index:idx_video_reactions_user_type,priority:2"`
	CreatedAtMillis int64        `gorm:"column:created_at_ms;not null"`
	UpdatedAtMillis int64        `gorm:"column:updated_at_ms;not null"`
}

// TableName provides the explicit table binding for GORM.
func (VideoReaction) TableName() string {
	return "video_reactions"
}

// CommentReaction is a user's like or dislike of a comment.
type CommentReaction struct {
	UserID          string       `gorm:"column:user_id;primaryKey;size:190;not null"`
	CommentID       string       `gorm:"column:comment_id;primaryKey;size:36;not null;index:idx_comment_reactions_comment_type,priority:1"`
	Type            ReactionType `gorm:"column:type;size:16;not null;index:idx_comment_reactions_comment_type,priority:2"`
	CreatedAtMillis int64        `gorm:"column:created_at_ms;not null"`
	UpdatedAtMillis int64        `gorm:"column:updated_at_ms;not null"`
}

// TableName provides the explicit table binding for GORM.
func (CommentReaction) TableName() string {
	return "comment_reactions"
}

// Playlist is an owner-curated ordered collection of videos.
type Playlist struct {
	ID              string `gorm:"column:id;primaryKey;size:36"`
	UserID          string `gorm:"column:user_id;size:190;not null;index:idx_playlists_user_updated,priority:1"`
	Name            string `gorm:"column:name;size:200;not null"`
	Description     string `gorm:"column:description;type:text;not null;default:''"`
	CreatedAtMillis int64  `gorm:"column:created_at_ms;not null"`
	UpdatedAtMillis int64  `gorm:"column:updated_at_ms;not null;index:idx_playlists_user_updated,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Playlist) TableName() string {
	return "playlists"
}

// PlaylistVideo is the membership of a video in a playlist; unique per pair.
type PlaylistVideo struct {
	PlaylistID      string `gorm:"column:playlist_id;primaryKey;size:36;not null;index:idx_playlist_videos_updated,priority:1"`
	VideoID         string `gorm:"column:video_id;primaryKey;size:36;not null;index"`
	CreatedAtMillis int64  `gorm:"column:created_at_ms;not null"`
	UpdatedAtMillis int64  `gorm:"column:updated_at_ms;not null;index:idx_playlist_videos_updated,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (PlaylistVideo) TableName() string {
	return "playlist_videos"
}

// Subscription links a viewer to a creator channel.
type Subscription struct {
	ViewerID        string `gorm:"column:viewer_id;primaryKey;size:190;not null;index:idx_subscriptions_viewer_updated,priority:1"`
	CreatorID       string `gorm:"column:creator_id;primaryKey;size:190;not null;index"`
	CreatedAtMillis int64  `gorm:"column:created_at_ms;not null"`
	UpdatedAtMillis int64  `gorm:"column:updated_at_ms;not null;index:idx_subscriptions_viewer_updated,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Subscription) TableName() string {
	return "subscriptions"
}

// Models lists every table owned by the catalog, in migration order.
func Models() []any {
	return []any{
		&Category{},
		&Video{},
		&Comment{},
		&VideoView{},
		&VideoReaction{},
		&CommentReaction{},
		&Playlist{},
		&PlaylistVideo{},
		&Subscription{},
	}
}

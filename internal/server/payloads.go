package server

import (
	"github.com/MarcoPoloResearchLab/reel/internal/catalog"
	"github.com/MarcoPoloResearchLab/reel/internal/pagination"
	"github.com/MarcoPoloResearchLab/reel/internal/storage"
	"github.com/MarcoPoloResearchLab/reel/internal/workflows"
)

type listResponse[T any] struct {
	Items      []T     `json:"items"`
	NextCursor *string `json:"next_cursor"`
}

func newListResponse[S, D any](page pagination.Page[S], convert func(S) D) listResponse[D] {
	items := make([]D, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, convert(item))
	}
	response := listResponse[D]{Items: items}
	if page.NextCursor != nil {
		token := page.NextCursor.Encode()
		response.NextCursor = &token
	}
	return response
}

type aggregatesPayload struct {
	ViewCount      int64  `json:"view_count"`
	LikeCount      int64  `json:"like_count"`
	DislikeCount   int64  `json:"dislike_count"`
	ViewerReaction string `json:"viewer_reaction"`
}

func newAggregatesPayload(aggregates catalog.Aggregates) *aggregatesPayload {
	reaction := aggregates.ViewerReaction
	if reaction == "" {
		reaction = catalog.ViewerReactionNone
	}
	return &aggregatesPayload{
		ViewCount:      aggregates.ViewCount,
		LikeCount:      aggregates.LikeCount,
		DislikeCount:   aggregates.DislikeCount,
		ViewerReaction: string(reaction),
	}
}

type videoPayload struct {
	ID              string `json:"id"`
	OwnerID         string `json:"owner_id"`
	OwnerName       string `json:"owner_name,omitempty"`
	OwnerImageURL   string `json:"owner_image_url,omitempty"`
	CategoryID      *int64 `json:"category_id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Visibility      string `json:"visibility"`
	ThumbnailURL    string `json:"thumbnail_url"`
	CreatedAtMillis int64  `json:"created_at_ms"`
	UpdatedAtMillis int64  `json:"updated_at_ms"`
	*aggregatesPayload
}

func newVideoPayload(video catalog.Video) videoPayload {
	return videoPayload{
		ID:              video.ID,
		OwnerID:         video.UserID,
		CategoryID:      video.CategoryID,
		Title:           video.Title,
		Description:     video.Description,
		Visibility:      string(video.Visibility),
		ThumbnailURL:    video.ThumbnailURL,
		CreatedAtMillis: video.CreatedAtMillis,
		UpdatedAtMillis: video.UpdatedAtMillis,
	}
}

func newVideoCardPayload(card catalog.VideoCard) videoPayload {
	payload := newVideoPayload(card.Video)
	payload.OwnerName = card.OwnerName
	payload.OwnerImageURL = card.OwnerImageURL
	payload.aggregatesPayload = newAggregatesPayload(card.Aggregates)
	return payload
}

type videoDetailPayload struct {
	videoPayload
	OwnerSubscriberCount int64 `json:"owner_subscriber_count"`
	ViewerSubscribed     bool  `json:"viewer_subscribed"`
}

type historyEntryPayload struct {
	videoPayload
	ViewedAtMillis int64 `json:"viewed_at_ms"`
}

type likedEntryPayload struct {
	videoPayload
	LikedAtMillis int64 `json:"liked_at_ms"`
}

type playlistEntryPayload struct {
	videoPayload
	AddedAtMillis int64 `json:"added_at_ms"`
}

type uploadPayload struct {
	URL             string `json:"url"`
	ObjectName      string `json:"object_name"`
	ContentType     string `json:"content_type"`
	ExpiresAtMillis int64  `json:"expires_at_ms"`
}

func newUploadPayload(ticket *storage.UploadTicket) *uploadPayload {
	if ticket == nil {
		return nil
	}
	return &uploadPayload{
		URL:             ticket.URL,
		ObjectName:      ticket.ObjectName,
		ContentType:     ticket.ContentType,
		ExpiresAtMillis: ticket.ExpiresAt.UnixMilli(),
	}
}

type createdVideoPayload struct {
	Video  videoPayload   `json:"video"`
	Upload *uploadPayload `json:"upload"`
}

type commentPayload struct {
	ID              string  `json:"id"`
	VideoID         string  `json:"video_id"`
	ParentID        *string `json:"parent_id"`
	OwnerID         string  `json:"owner_id"`
	OwnerName       string  `json:"owner_name,omitempty"`
	OwnerImageURL   string  `json:"owner_image_url,omitempty"`
	Value           string  `json:"value"`
	ReplyCount      int64   `json:"reply_count"`
	CreatedAtMillis int64   `json:"created_at_ms"`
	UpdatedAtMillis int64   `json:"updated_at_ms"`
	*aggregatesPayload
}

func newCommentPayload(comment catalog.Comment) commentPayload {
	return commentPayload{
		ID:              comment.ID,
		VideoID:         comment.VideoID,
		ParentID:        comment.ParentID,
		OwnerID:         comment.UserID,
		Value:           comment.Value,
		CreatedAtMillis: comment.CreatedAtMillis,
		UpdatedAtMillis: comment.UpdatedAtMillis,
	}
}

func newCommentCardPayload(card catalog.CommentCard) commentPayload {
	payload := newCommentPayload(card.Comment)
	payload.OwnerName = card.OwnerName
	payload.OwnerImageURL = card.OwnerImageURL
	payload.ReplyCount = card.ReplyCount
	payload.aggregatesPayload = newAggregatesPayload(card.Aggregates)
	return payload
}

type commentListResponse struct {
	listResponse[commentPayload]
	TotalCount int64 `json:"total_count"`
}

type playlistPayload struct {
	ID                 string `json:"id"`
	OwnerID            string `json:"owner_id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	VideoCount         *int64 `json:"video_count,omitempty"`
	LatestThumbnailURL string `json:"latest_thumbnail_url,omitempty"`
	ContainsVideo      *bool  `json:"contains_video,omitempty"`
	CreatedAtMillis    int64  `json:"created_at_ms"`
	UpdatedAtMillis    int64  `json:"updated_at_ms"`
}

func newPlaylistPayload(playlist catalog.Playlist) playlistPayload {
	return playlistPayload{
		ID:              playlist.ID,
		OwnerID:         playlist.UserID,
		Name:            playlist.Name,
		Description:     playlist.Description,
		CreatedAtMillis: playlist.CreatedAtMillis,
		UpdatedAtMillis: playlist.UpdatedAtMillis,
	}
}

func newPlaylistCardPayload(card catalog.PlaylistCard) playlistPayload {
	payload := newPlaylistPayload(card.Playlist)
	count := card.VideoCount
	payload.VideoCount = &count
	payload.LatestThumbnailURL = card.LatestThumbnailURL
	return payload
}

func newPlaylistMembershipPayload(card catalog.PlaylistCard) playlistPayload {
	payload := newPlaylistCardPayload(card)
	contains := card.ContainsVideo
	payload.ContainsVideo = &contains
	return payload
}

type playlistVideoPayload struct {
	PlaylistID    string `json:"playlist_id"`
	VideoID       string `json:"video_id"`
	AddedAtMillis int64  `json:"added_at_ms"`
}

type subscriptionPayload struct {
	CreatorID          string `json:"creator_id"`
	Name               string `json:"name"`
	ImageURL           string `json:"image_url"`
	SubscriberCount    int64  `json:"subscriber_count"`
	SubscribedAtMillis int64  `json:"subscribed_at_ms"`
}

func newSubscriptionPayload(card catalog.SubscriptionCard) subscriptionPayload {
	return subscriptionPayload(card)
}

type channelPayload struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	ImageURL         string `json:"image_url"`
	SubscriberCount  int64  `json:"subscriber_count"`
	VideoCount       int64  `json:"video_count"`
	ViewerSubscribed bool   `json:"viewer_subscribed"`
}

type categoryPayload struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type reactionPayload struct {
	Removed  bool    `json:"removed"`
	Reaction *string `json:"reaction"`
	// UpdatedAtMillis is zero when the reaction was removed.
	UpdatedAtMillis int64 `json:"updated_at_ms"`
}

func newReactionPayload(result catalog.ReactionResult) reactionPayload {
	payload := reactionPayload{Removed: result.Removed}
	if result.Reaction != nil {
		reaction := string(result.Reaction.Type)
		payload.Reaction = &reaction
		payload.UpdatedAtMillis = result.Reaction.UpdatedAtMillis
	}
	return payload
}

type jobPayload struct {
	JobID            string `json:"job_id"`
	JobType          string `json:"job_type"`
	EnqueuedAtMillis int64  `json:"enqueued_at_ms"`
}

func newJobPayload(handle workflows.JobHandle) jobPayload {
	return jobPayload{
		JobID:            handle.ID,
		JobType:          string(handle.Type),
		EnqueuedAtMillis: handle.EnqueuedAt.UnixMilli(),
	}
}

type createVideoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CategoryID  *int64 `json:"category_id"`
	Visibility  string `json:"visibility"`
	ContentType string `json:"content_type"`
}

type updateVideoRequest struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	CategoryID    *int64  `json:"category_id"`
	ClearCategory bool    `json:"clear_category"`
	Visibility    *string `json:"visibility"`
	ThumbnailURL  *string `json:"thumbnail_url"`
}

type reactionRequest struct {
	Type string `json:"type" binding:"required"`
}

type workflowRequest struct {
	Prompt string `json:"prompt"`
}

type createCommentRequest struct {
	Value    string  `json:"value" binding:"required"`
	ParentID *string `json:"parent_id"`
}

type createPlaylistRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

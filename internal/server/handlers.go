package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/reel/internal/catalog"
	"github.com/MarcoPoloResearchLab/reel/internal/pagination"
	"github.com/MarcoPoloResearchLab/reel/internal/workflows"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// pageRequest reads the cursor and limit query parameters. A missing limit
// selects pagination.DefaultLimit.
func pageRequest(c *gin.Context) (pagination.Request, bool) {
	limit := pagination.DefaultLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return pagination.Request{}, false
		}
		limit = parsed
	}
	request, err := pagination.ParseRequest(c.Query("cursor"), limit)
	if err != nil {
		reason := "invalid_cursor"
		if errors.Is(err, pagination.ErrInvalidLimit) {
			reason = "invalid_limit"
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": reason})
		return pagination.Request{}, false
	}
	return request, true
}

func categoryFilter(c *gin.Context) (*int64, bool) {
	raw := strings.TrimSpace(c.Query("category_id"))
	if raw == "" {
		return nil, true
	}
	categoryID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || categoryID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_category"})
		return nil, false
	}
	return &categoryID, true
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, catalog.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, catalog.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": reason, "code": code} for catalog failures. Store
// failures are already logged by the catalog, so only the status is chosen here.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	status := statusForError(err)
	var serviceErr *catalog.ServiceError
	if errors.As(err, &serviceErr) {
		c.JSON(status, gin.H{"error": serviceErr.Reason(), "code": serviceErr.Code()})
		return
	}
	h.logger.Error("unexpected handler error", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(status, gin.H{"error": "internal_error"})
}

func (h *httpHandler) handleListHomeVideos(c *gin.Context) {
	request, ok := pageRequest(c)
	if !ok {
		return
	}
	categoryID, ok := categoryFilter(c)
	if !ok {
		return
	}
	page, err := h.catalog.ListHomeVideos(c.Request.Context(), viewerID(c), categoryID, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(page, newVideoCardPayload))
}

func (h *httpHandler) handleSearchVideos(c *gin.Context) {
	request, ok := pageRequest(c)
	if !ok {
		return
	}
	categoryID, ok := categoryFilter(c)
	if !ok {
		return
	}
	page, err := h.catalog.SearchVideos(c.Request.Context(), viewerID(c), c.Query("q"), categoryID, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(page, newVideoCardPayload))
}

func (h *httpHandler) handleGetVideo(c *gin.Context) {
	detail, err := h.catalog.GetVideo(c.Request.Context(), viewerID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, videoDetailPayload{
		videoPayload:         newVideoCardPayload(detail.VideoCard),
		OwnerSubscriberCount: detail.OwnerSubscriberCount,
		ViewerSubscribed:     detail.ViewerSubscribed,
	})
}

func (h *httpHandler) handleListChannelVideos(c *gin.Context) {
	request, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.catalog.ListChannelVideos(c.Request.Context(), viewerID(c), c.Param("id"), request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(page, newVideoCardPayload))
}

func (h *httpHandler) handleGetChannel(c *gin.Context) {
	channel, err := h.catalog.GetChannel(c.Request.Context(), viewerID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, channelPayload(channel))
}

func (h *httpHandler) handleListCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	items := make([]categoryPayload, 0, len(categories))
	for _, category := range categories {
		items = append(items, categoryPayload(category))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// handleGetAggregates serves GET /aggregates?kind=video&ids=a,b,c.
func (h *httpHandler) handleGetAggregates(c *gin.Context) {
	kind := catalog.TargetKind(strings.ToLower(strings.TrimSpace(c.DefaultQuery("kind", string(catalog.TargetVideo)))))
	var ids []string
	for _, raw := range c.QueryArray("ids") {
		for _, id := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				ids = append(ids, trimmed)
			}
		}
	}
	aggregates, err := h.catalog.GetAggregates(c.Request.Context(), kind, ids, viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	items := make(map[string]*aggregatesPayload, len(aggregates))
	for id, value := range aggregates {
		items[id] = newAggregatesPayload(value)
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "items": items})
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	request, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.catalog.ListComments(c.Request.Context(), viewerID(c), c.Param("id"), request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, commentListResponse{
		listResponse: newListResponse(page.Page, newCommentCardPayload),
		TotalCount:   page.TotalCount,
	})
}

func (h *httpHandler) handleListReplies(c *gin.Context) {
	request, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.catalog.ListReplies(c.Request.Context(), viewerID(c), c.Param("id"), request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, commentListResponse{
		listResponse: newListResponse(page.Page, newCommentCardPayload),
		TotalCount:   page.TotalCount,
	})
}

func (h *httpHandler) handleListHistory(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	request, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.catalog.ListHistory(c.Request.Context(), userID, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(page, func(entry catalog.HistoryEntry) historyEntryPayload {
		return historyEntryPayload{videoPayload: newVideoCardPayload(entry.VideoCard), ViewedAtMillis: entry.ViewedAtMillis}
	}))
}

func (h *httpHandler) handleListLikedVideos(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	request, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.catalog.ListLikedVideos(c.Request.Context(), userID, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(page, func(entry catalog.LikedEntry) likedEntryPayload {
		return likedEntryPayload{videoPayload: newVideoCardPayload(entry.VideoCard), LikedAtMillis: entry.LikedAtMillis}
	}))
}

func (h *httpHandler) handleListSubscriptions(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	request, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.catalog.ListSubscriptions(c.Request.Context(), userID, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(page, newSubscriptionPayload))
}

func (h *httpHandler) handleListSubscribedVideos(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	request, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.catalog.ListSubscribedVideos(c.Request.Context(), userID, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(page, newVideoCardPayload))
}

func (h *httpHandler) handleListPlaylists(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	request, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.catalog.ListPlaylists(c.Request.Context(), userID, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(page, newPlaylistCardPayload))
}

func (h *httpHandler) handleGetPlaylist(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	playlist, err := h.catalog.GetPlaylist(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPlaylistPayload(playlist))
}

func (h *httpHandler) handleListPlaylistVideos(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	request, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.catalog.ListPlaylistVideos(c.Request.Context(), userID, c.Param("id"), request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(page, func(entry catalog.PlaylistEntry) playlistEntryPayload {
		return playlistEntryPayload{videoPayload: newVideoCardPayload(entry.VideoCard), AddedAtMillis: entry.AddedAtMillis}
	}))
}

func (h *httpHandler) handleListPlaylistsForVideo(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	request, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := h.catalog.ListPlaylistsForVideo(c.Request.Context(), userID, c.Param("id"), request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(page, newPlaylistMembershipPayload))
}

func (h *httpHandler) handleCreateVideo(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var body createVideoRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}
	draft := catalog.VideoDraft{
		Title:       body.Title,
		Description: body.Description,
		CategoryID:  body.CategoryID,
		ContentType: body.ContentType,
	}
	if strings.TrimSpace(body.Visibility) != "" {
		visibility, err := catalog.ParseVisibility(body.Visibility)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_visibility"})
			return
		}
		draft.Visibility = visibility
	}
	created, err := h.catalog.CreateVideo(c.Request.Context(), userID, draft)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createdVideoPayload{
		Video:  newVideoPayload(created.Video),
		Upload: newUploadPayload(created.Upload),
	})
}

func (h *httpHandler) handleUpdateVideo(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var body updateVideoRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}
	patch := catalog.VideoPatch{
		Title:         body.Title,
		Description:   body.Description,
		CategoryID:    body.CategoryID,
		ClearCategory: body.ClearCategory,
		ThumbnailURL:  body.ThumbnailURL,
	}
	if body.Visibility != nil {
		visibility, err := catalog.ParseVisibility(*body.Visibility)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_visibility"})
			return
		}
		patch.Visibility = &visibility
	}
	video, err := h.catalog.UpdateVideo(c.Request.Context(), userID, c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newVideoPayload(video))
}

func (h *httpHandler) handleRemoveVideo(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	if err := h.catalog.RemoveVideo(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleRecordView(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	if err := h.catalog.RecordView(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleVideoReaction(c *gin.Context) {
	h.handleReaction(c, catalog.TargetVideo)
}

func (h *httpHandler) handleCommentReaction(c *gin.Context) {
	h.handleReaction(c, catalog.TargetComment)
}

func (h *httpHandler) handleReaction(c *gin.Context, kind catalog.TargetKind) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var body reactionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}
	reaction, err := catalog.ParseReactionType(body.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_reaction"})
		return
	}
	result, err := h.catalog.SetReaction(c.Request.Context(), userID, kind, c.Param("id"), reaction)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newReactionPayload(result))
}

func (h *httpHandler) handleTriggerWorkflow(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	jobType, err := workflows.ParseJobType(c.Param("job"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_job_type"})
		return
	}
	var body workflowRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
			return
		}
	}
	handle, err := h.catalog.TriggerWorkflow(c.Request.Context(), userID, c.Param("id"), jobType, body.Prompt)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, newJobPayload(handle))
}

func (h *httpHandler) handleCreateComment(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var body createCommentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}
	comment, err := h.catalog.CreateComment(c.Request.Context(), userID, c.Param("id"), body.ParentID, body.Value)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCommentPayload(comment))
}

func (h *httpHandler) handleRemoveComment(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	if err := h.catalog.RemoveComment(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleSubscribe(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	subscription, err := h.catalog.Subscribe(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"creator_id":       subscription.CreatorID,
		"subscribed_at_ms": subscription.UpdatedAtMillis,
	})
}

func (h *httpHandler) handleUnsubscribe(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	if err := h.catalog.Unsubscribe(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleCreatePlaylist(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var body createPlaylistRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}
	playlist, err := h.catalog.CreatePlaylist(c.Request.Context(), userID, body.Name, body.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newPlaylistPayload(playlist))
}

func (h *httpHandler) handleRemovePlaylist(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	if err := h.catalog.RemovePlaylist(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleAddPlaylistVideo(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	membership, err := h.catalog.AddPlaylistVideo(c.Request.Context(), userID, c.Param("id"), c.Param("videoId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, playlistVideoPayload{
		PlaylistID:    membership.PlaylistID,
		VideoID:       membership.VideoID,
		AddedAtMillis: membership.UpdatedAtMillis,
	})
}

func (h *httpHandler) handleRemovePlaylistVideo(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	if err := h.catalog.RemovePlaylistVideo(c.Request.Context(), userID, c.Param("id"), c.Param("videoId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/reel/internal/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Assembler is one feed: the keyset it is ordered by and how to read a row's position.
// Every List* entry point composes its own filtered, projected base query and hands it
// to an Assembler, so ordering and cursor handling live in exactly one place.
type Assembler[T any] struct {
	Name   string
	Keyset pagination.Keyset
	Key    pagination.KeyFunc[T]
}

func (a Assembler[T]) run(ctx context.Context, s *Service, query *gorm.DB, request pagination.Request, fields ...zap.Field) (pagination.Page[T], error) {
	page, err := pagination.Paginate(ctx, query, a.Keyset, request, a.Key)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidLimit) || errors.Is(err, pagination.ErrInvalidCursor) {
			return pagination.Page[T]{}, invalidPage(a.Name, err)
		}
		return pagination.Page[T]{}, s.storeFailure(a.Name, "query_failed", err, fields...)
	}
	return page, nil
}

// VideoCard is a video row as listed in feeds.
type VideoCard struct {
	Video
	OwnerName     string `gorm:"column:owner_name"`
	OwnerImageURL string `gorm:"column:owner_image_url"`
	Aggregates
}

// HistoryEntry is a video the viewer watched, positioned by the last view.
type HistoryEntry struct {
	VideoCard
	ViewedAtMillis int64 `gorm:"column:viewed_at_ms"`
}

// LikedEntry is a video the viewer liked, positioned by the reaction time.
type LikedEntry struct {
	VideoCard
	LikedAtMillis int64 `gorm:"column:liked_at_ms"`
}

// PlaylistEntry is a playlist member, positioned by when it was added.
type PlaylistEntry struct {
	VideoCard
	AddedAtMillis int64 `gorm:"column:added_at_ms"`
}

// PlaylistCard is an owned playlist with its size and the thumbnail of its latest addition.
type PlaylistCard struct {
	Playlist
	VideoCount         int64  `gorm:"column:video_count"`
	LatestThumbnailURL string `gorm:"column:latest_thumbnail_url"`
	ContainsVideo      bool   `gorm:"column:contains_video"`
}

// CommentCard is a comment with author details, reply count and reactions.
type CommentCard struct {
	Comment
	OwnerName     string `gorm:"column:owner_name"`
	OwnerImageURL string `gorm:"column:owner_image_url"`
	ReplyCount    int64  `gorm:"column:reply_count"`
	Aggregates
}

// CommentPage is a page of comments plus the number of comments in the thread.
type CommentPage struct {
	pagination.Page[CommentCard]
	TotalCount int64
}

// SubscriptionCard is a creator the viewer follows.
type SubscriptionCard struct {
	CreatorID          string `gorm:"column:creator_id"`
	Name               string `gorm:"column:name"`
	ImageURL           string `gorm:"column:image_url"`
	SubscriberCount    int64  `gorm:"column:subscriber_count"`
	SubscribedAtMillis int64  `gorm:"column:subscribed_at_ms"`
}

var videoKeyset = pagination.Keyset{OrderColumn: "videos.updated_at_ms", IDColumn: "videos.id"}

func videoCardKey(card VideoCard) pagination.Cursor {
	return pagination.Cursor{OrderKey: card.UpdatedAtMillis, ID: card.ID}
}

var (
	homeFeed            = Assembler[VideoCard]{Name: opListHomeVideos, Keyset: videoKeyset, Key: videoCardKey}
	searchFeed          = Assembler[VideoCard]{Name: opSearchVideos, Keyset: videoKeyset, Key: videoCardKey}
	channelFeed         = Assembler[VideoCard]{Name: opListChannelVideos, Keyset: videoKeyset, Key: videoCardKey}
	subscribedVideoFeed = Assembler[VideoCard]{Name: opListSubscribedVideos, Keyset: videoKeyset, Key: videoCardKey}

	historyFeed = Assembler[HistoryEntry]{
		Name:   opListHistory,
		Keyset: pagination.Keyset{OrderColumn: "vv.viewed_at_ms", IDColumn: "videos.id"},
		Key: func(entry HistoryEntry) pagination.Cursor {
			return pagination.Cursor{OrderKey: entry.ViewedAtMillis, ID: entry.ID}
		},
	}
	likedFeed = Assembler[LikedEntry]{
		Name:   opListLiked,
		Keyset: pagination.Keyset{OrderColumn: "lr.updated_at_ms", IDColumn: "videos.id"},
		Key: func(entry LikedEntry) pagination.Cursor {
			return pagination.Cursor{OrderKey: entry.LikedAtMillis, ID: entry.ID}
		},
	}
	playlistVideoFeed = Assembler[PlaylistEntry]{
		Name:   opListPlaylistVideos,
		Keyset: pagination.Keyset{OrderColumn: "pv.updated_at_ms", IDColumn: "videos.id"},
		Key: func(entry PlaylistEntry) pagination.Cursor {
			return pagination.Cursor{OrderKey: entry.AddedAtMillis, ID: entry.ID}
		},
	}
	playlistFeed = Assembler[PlaylistCard]{
		Name:   opListPlaylists,
		Keyset: pagination.Keyset{OrderColumn: "playlists.updated_at_ms", IDColumn: "playlists.id"},
		Key:    playlistCardKey,
	}
	playlistsForVideoFeed = Assembler[PlaylistCard]{
		Name:   opListPlaylistsForVideo,
		Keyset: pagination.Keyset{OrderColumn: "playlists.updated_at_ms", IDColumn: "playlists.id"},
		Key:    playlistCardKey,
	}
	commentFeed = Assembler[CommentCard]{
		Name:   opListComments,
		Keyset: pagination.Keyset{OrderColumn: "comments.updated_at_ms", IDColumn: "comments.id"},
		Key: func(card CommentCard) pagination.Cursor {
			return pagination.Cursor{OrderKey: card.UpdatedAtMillis, ID: card.ID}
		},
	}
	subscriptionFeed = Assembler[SubscriptionCard]{
		Name:   opListSubscriptions,
		Keyset: pagination.Keyset{OrderColumn: "subscriptions.updated_at_ms", IDColumn: "subscriptions.creator_id"},
		Key: func(card SubscriptionCard) pagination.Cursor {
			return pagination.Cursor{OrderKey: card.SubscribedAtMillis, ID: card.CreatorID}
		},
	}
)

func playlistCardKey(card PlaylistCard) pagination.Cursor {
	return pagination.Cursor{OrderKey: card.UpdatedAtMillis, ID: card.ID}
}

// videoCards selects videos with author details and aggregates. extra may append
// feed-specific columns.
func (s *Service) videoCards(ctx context.Context, viewerID string, extra func(*projection)) *gorm.DB {
	p := newProjection(
		"videos.*",
		"COALESCE(author.name, '') AS owner_name",
		"COALESCE(author.image_url, '') AS owner_image_url",
	)
	videoAggregates.project(&p, viewerID)
	if extra != nil {
		extra(&p)
	}
	return p.apply(s.db.WithContext(ctx).Table("videos")).
		Joins("LEFT JOIN users author ON author.id = videos.user_id")
}

// ListHomeVideos lists public videos, newest edit first, optionally within one category.
func (s *Service) ListHomeVideos(ctx context.Context, viewerID string, categoryID *int64, request pagination.Request) (pagination.Page[VideoCard], error) {
	if err := s.ready(opListHomeVideos); err != nil {
		return pagination.Page[VideoCard]{}, err
	}
	if err := request.Validate(); err != nil {
		return pagination.Page[VideoCard]{}, invalidPage(opListHomeVideos, err)
	}
	query := s.videoCards(ctx, strings.TrimSpace(viewerID), nil).
		Where("videos.visibility = ?", VisibilityPublic)
	if categoryID != nil {
		query = query.Where("videos.category_id = ?", *categoryID)
	}
	return homeFeed.run(ctx, s, query, request)
}

// SearchVideos lists public videos whose title contains term, ignoring case.
func (s *Service) SearchVideos(ctx context.Context, viewerID, term string, categoryID *int64, request pagination.Request) (pagination.Page[VideoCard], error) {
	if err := s.ready(opSearchVideos); err != nil {
		return pagination.Page[VideoCard]{}, err
	}
	needle := strings.TrimSpace(term)
	if needle == "" {
		return pagination.Page[VideoCard]{}, fault(opSearchVideos, "missing_query", ErrInvalidInput, "search term is required")
	}
	if len(needle) > maxTitleLength {
		return pagination.Page[VideoCard]{}, fault(opSearchVideos, "invalid_query", ErrInvalidInput, "search term too long")
	}
	if err := request.Validate(); err != nil {
		return pagination.Page[VideoCard]{}, invalidPage(opSearchVideos, err)
	}
	pattern := "%" + escapeLike(strings.ToLower(needle)) + "%"
	query := s.videoCards(ctx, strings.TrimSpace(viewerID), nil).
		Where("videos.visibility = ?", VisibilityPublic).
		Where(`LOWER(videos.title) LIKE ? ESCAPE '\'`, pattern)
	if categoryID != nil {
		query = query.Where("videos.category_id = ?", *categoryID)
	}
	return searchFeed.run(ctx, s, query, request)
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

// ListChannelVideos lists a channel's videos. The owner also sees private uploads.
func (s *Service) ListChannelVideos(ctx context.Context, viewerID, channelID string, request pagination.Request) (pagination.Page[VideoCard], error) {
	if err := s.ready(opListChannelVideos); err != nil {
		return pagination.Page[VideoCard]{}, err
	}
	channel, err := validateIdentifier(opListChannelVideos, "channel_id", channelID)
	if err != nil {
		return pagination.Page[VideoCard]{}, err
	}
	if err := request.Validate(); err != nil {
		return pagination.Page[VideoCard]{}, invalidPage(opListChannelVideos, err)
	}
	viewer := strings.TrimSpace(viewerID)
	query := visibleVideos(s.videoCards(ctx, viewer, nil), viewer).
		Where("videos.user_id = ?", channel)
	return channelFeed.run(ctx, s, query, request, zap.String("channel_id", channel))
}

// ListHistory lists videos the viewer watched, most recent view first.
func (s *Service) ListHistory(ctx context.Context, viewerID string, request pagination.Request) (pagination.Page[HistoryEntry], error) {
	if err := s.ready(opListHistory); err != nil {
		return pagination.Page[HistoryEntry]{}, err
	}
	viewer, err := requireViewer(opListHistory, viewerID)
	if err != nil {
		return pagination.Page[HistoryEntry]{}, err
	}
	if err := request.Validate(); err != nil {
		return pagination.Page[HistoryEntry]{}, invalidPage(opListHistory, err)
	}
	query := s.videoCards(ctx, viewer, func(p *projection) {
		p.add("vv.viewed_at_ms AS viewed_at_ms")
	}).Joins("JOIN video_views vv ON vv.video_id = videos.id AND vv.user_id = ?", viewer)
	query = visibleVideos(query, viewer)
	return historyFeed.run(ctx, s, query, request, zap.String("user_id", viewer))
}

// ListLikedVideos lists videos the viewer currently likes, most recent reaction first.
func (s *Service) ListLikedVideos(ctx context.Context, viewerID string, request pagination.Request) (pagination.Page[LikedEntry], error) {
	if err := s.ready(opListLiked); err != nil {
		return pagination.Page[LikedEntry]{}, err
	}
	viewer, err := requireViewer(opListLiked, viewerID)
	if err != nil {
		return pagination.Page[LikedEntry]{}, err
	}
	if err := request.Validate(); err != nil {
		return pagination.Page[LikedEntry]{}, invalidPage(opListLiked, err)
	}
	query := s.videoCards(ctx, viewer, func(p *projection) {
		p.add("lr.updated_at_ms AS liked_at_ms")
	}).Joins("JOIN video_reactions lr ON lr.video_id = videos.id AND lr.user_id = ? AND lr.type = ?", viewer, ReactionLike)
	query = visibleVideos(query, viewer)
	return likedFeed.run(ctx, s, query, request, zap.String("user_id", viewer))
}

// ListSubscribedVideos lists public videos from every creator the viewer follows.
func (s *Service) ListSubscribedVideos(ctx context.Context, viewerID string, request pagination.Request) (pagination.Page[VideoCard], error) {
	if err := s.ready(opListSubscribedVideos); err != nil {
		return pagination.Page[VideoCard]{}, err
	}
	viewer, err := requireViewer(opListSubscribedVideos, viewerID)
	if err != nil {
		return pagination.Page[VideoCard]{}, err
	}
	if err := request.Validate(); err != nil {
		return pagination.Page[VideoCard]{}, invalidPage(opListSubscribedVideos, err)
	}
	creators := s.db.WithContext(ctx).Model(&Subscription{}).
		Select("creator_id").
		Where("viewer_id = ?", viewer)
	query := s.videoCards(ctx, viewer, nil).
		Where("videos.visibility = ?", VisibilityPublic).
		Where("videos.user_id IN (?)", creators)
	return subscribedVideoFeed.run(ctx, s, query, request, zap.String("user_id", viewer))
}

// ListPlaylistVideos lists the members of a playlist owned by the viewer, latest addition first.
func (s *Service) ListPlaylistVideos(ctx context.Context, viewerID, playlistID string, request pagination.Request) (pagination.Page[PlaylistEntry], error) {
	if err := s.ready(opListPlaylistVideos); err != nil {
		return pagination.Page[PlaylistEntry]{}, err
	}
	viewer, err := requireViewer(opListPlaylistVideos, viewerID)
	if err != nil {
		return pagination.Page[PlaylistEntry]{}, err
	}
	playlist, err := validateIdentifier(opListPlaylistVideos, "playlist_id", playlistID)
	if err != nil {
		return pagination.Page[PlaylistEntry]{}, err
	}
	if err := request.Validate(); err != nil {
		return pagination.Page[PlaylistEntry]{}, invalidPage(opListPlaylistVideos, err)
	}
	if _, err := ownedPlaylist(s.db.WithContext(ctx), opListPlaylistVideos, viewer, playlist); err != nil {
		return pagination.Page[PlaylistEntry]{}, s.storeFailure(opListPlaylistVideos, "query_failed", err, zap.String("playlist_id", playlist))
	}
	query := s.videoCards(ctx, viewer, func(p *projection) {
		p.add("pv.updated_at_ms AS added_at_ms")
	}).Joins("JOIN playlist_videos pv ON pv.video_id = videos.id AND pv.playlist_id = ?", playlist)
	query = visibleVideos(query, viewer)
	return playlistVideoFeed.run(ctx, s, query, request, zap.String("playlist_id", playlist))
}

// playlistCards selects the viewer's playlists. A non-empty videoID fills ContainsVideo.
func (s *Service) playlistCards(ctx context.Context, viewerID, videoID string) *gorm.DB {
	p := newProjection("playlists.*")
	p.add("(SELECT COUNT(*) FROM playlist_videos cp JOIN videos cv ON cv.id = cp.video_id"+
		" WHERE cp.playlist_id = playlists.id AND (cv.visibility = ? OR cv.user_id = playlists.user_id)) AS video_count",
		VisibilityPublic)
	p.add("COALESCE((SELECT tv.thumbnail_url FROM playlist_videos tp JOIN videos tv ON tv.id = tp.video_id"+
		" WHERE tp.playlist_id = playlists.id AND (tv.visibility = ? OR tv.user_id = playlists.user_id)"+
		" ORDER BY tp.updated_at_ms DESC, tp.video_id DESC LIMIT 1), '') AS latest_thumbnail_url",
		VisibilityPublic)
	if videoID == "" {
		p.add("FALSE AS contains_video")
	} else {
		p.add("EXISTS (SELECT 1 FROM playlist_videos xp WHERE xp.playlist_id = playlists.id AND xp.video_id = ?) AS contains_video", videoID)
	}
	return p.apply(s.db.WithContext(ctx).Table("playlists")).
		Where("playlists.user_id = ?", viewerID)
}

// ListPlaylists lists the viewer's playlists, most recently edited first.
func (s *Service) ListPlaylists(ctx context.Context, viewerID string, request pagination.Request) (pagination.Page[PlaylistCard], error) {
	if err := s.ready(opListPlaylists); err != nil {
		return pagination.Page[PlaylistCard]{}, err
	}
	viewer, err := requireViewer(opListPlaylists, viewerID)
	if err != nil {
		return pagination.Page[PlaylistCard]{}, err
	}
	if err := request.Validate(); err != nil {
		return pagination.Page[PlaylistCard]{}, invalidPage(opListPlaylists, err)
	}
	return playlistFeed.run(ctx, s, s.playlistCards(ctx, viewer, ""), request, zap.String("user_id", viewer))
}

// ListPlaylistsForVideo lists the viewer's playlists flagging the ones that hold videoID.
func (s *Service) ListPlaylistsForVideo(ctx context.Context, viewerID, videoID string, request pagination.Request) (pagination.Page[PlaylistCard], error) {
	if err := s.ready(opListPlaylistsForVideo); err != nil {
		return pagination.Page[PlaylistCard]{}, err
	}
	viewer, err := requireViewer(opListPlaylistsForVideo, viewerID)
	if err != nil {
		return pagination.Page[PlaylistCard]{}, err
	}
	video, err := validateIdentifier(opListPlaylistsForVideo, "video_id", videoID)
	if err != nil {
		return pagination.Page[PlaylistCard]{}, err
	}
	if err := request.Validate(); err != nil {
		return pagination.Page[PlaylistCard]{}, invalidPage(opListPlaylistsForVideo, err)
	}
	visible, err := videoAggregates.visible(s.db.WithContext(ctx), video, viewer)
	if err != nil {
		return pagination.Page[PlaylistCard]{}, s.storeFailure(opListPlaylistsForVideo, "query_failed", err, zap.String("video_id", video))
	}
	if !visible {
		return pagination.Page[PlaylistCard]{}, fault(opListPlaylistsForVideo, "video_not_found", ErrNotFound, video)
	}
	return playlistsForVideoFeed.run(ctx, s, s.playlistCards(ctx, viewer, video), request,
		zap.String("user_id", viewer),
		zap.String("video_id", video))
}

// ListComments lists the top-level comments of a visible video, most recently edited first.
func (s *Service) ListComments(ctx context.Context, viewerID, videoID string, request pagination.Request) (CommentPage, error) {
	if err := s.ready(opListComments); err != nil {
		return CommentPage{}, err
	}
	video, err := validateIdentifier(opListComments, "video_id", videoID)
	if err != nil {
		return CommentPage{}, err
	}
	return s.listComments(ctx, strings.TrimSpace(viewerID), video, nil, request)
}

// ListReplies lists the replies to a top-level comment.
func (s *Service) ListReplies(ctx context.Context, viewerID, commentID string, request pagination.Request) (CommentPage, error) {
	if err := s.ready(opListComments); err != nil {
		return CommentPage{}, err
	}
	parentID, err := validateIdentifier(opListComments, "comment_id", commentID)
	if err != nil {
		return CommentPage{}, err
	}
	var parent Comment
	result := s.db.WithContext(ctx).Where("id = ?", parentID).Limit(1).Find(&parent)
	if result.Error != nil {
		return CommentPage{}, s.storeFailure(opListComments, "query_failed", result.Error, zap.String("comment_id", parentID))
	}
	if result.RowsAffected == 0 {
		return CommentPage{}, fault(opListComments, "comment_not_found", ErrNotFound, parentID)
	}
	return s.listComments(ctx, strings.TrimSpace(viewerID), parent.VideoID, &parentID, request)
}

func (s *Service) listComments(ctx context.Context, viewer, videoID string, parentID *string, request pagination.Request) (CommentPage, error) {
	if err := request.Validate(); err != nil {
		return CommentPage{}, invalidPage(opListComments, err)
	}
	visible, err := videoAggregates.visible(s.db.WithContext(ctx), videoID, viewer)
	if err != nil {
		return CommentPage{}, s.storeFailure(opListComments, "query_failed", err, zap.String("video_id", videoID))
	}
	if !visible {
		return CommentPage{}, fault(opListComments, "video_not_found", ErrNotFound, videoID)
	}

	thread := func(query *gorm.DB) *gorm.DB {
		query = query.Where("comments.video_id = ?", videoID)
		if parentID == nil {
			return query.Where("comments.parent_id IS NULL")
		}
		return query.Where("comments.parent_id = ?", *parentID)
	}

	var total int64
	if err := thread(s.db.WithContext(ctx).Table("comments")).Count(&total).Error; err != nil {
		return CommentPage{}, s.storeFailure(opListComments, "count_failed", err, zap.String("video_id", videoID))
	}

	p := newProjection(
		"comments.*",
		"COALESCE(author.name, '') AS owner_name",
		"COALESCE(author.image_url, '') AS owner_image_url",
		"(SELECT COUNT(*) FROM comments replies WHERE replies.parent_id = comments.id) AS reply_count",
	)
	commentAggregates.project(&p, viewer)
	query := thread(p.apply(s.db.WithContext(ctx).Table("comments")).
		Joins("LEFT JOIN users author ON author.id = comments.user_id"))

	page, err := commentFeed.run(ctx, s, query, request, zap.String("video_id", videoID))
	if err != nil {
		return CommentPage{}, err
	}
	return CommentPage{Page: page, TotalCount: total}, nil
}

// ListSubscriptions lists creators the viewer follows, most recent subscription first.
func (s *Service) ListSubscriptions(ctx context.Context, viewerID string, request pagination.Request) (pagination.Page[SubscriptionCard], error) {
	if err := s.ready(opListSubscriptions); err != nil {
		return pagination.Page[SubscriptionCard]{}, err
	}
	viewer, err := requireViewer(opListSubscriptions, viewerID)
	if err != nil {
		return pagination.Page[SubscriptionCard]{}, err
	}
	if err := request.Validate(); err != nil {
		return pagination.Page[SubscriptionCard]{}, invalidPage(opListSubscriptions, err)
	}
	p := newProjection(
		"subscriptions.creator_id AS creator_id",
		"COALESCE(creator.name, '') AS name",
		"COALESCE(creator.image_url, '') AS image_url",
		"subscriptions.updated_at_ms AS subscribed_at_ms",
		"(SELECT COUNT(*) FROM subscriptions fans WHERE fans.creator_id = subscriptions.creator_id) AS subscriber_count",
	)
	query := p.apply(s.db.WithContext(ctx).Table("subscriptions")).
		Joins("LEFT JOIN users creator ON creator.id = subscriptions.creator_id").
		Where("subscriptions.viewer_id = ?", viewer)
	return subscriptionFeed.run(ctx, s, query, request, zap.String("user_id", viewer))
}

package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Client faults. Every ServiceError caused by the caller wraps exactly one of these.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingViewer     = errors.New("viewer identifier is required")
	errMissingSigner     = errors.New("upload signer is not configured")
	errMissingTrigger    = errors.New("job trigger is not configured")
)

// ServiceError carries a stable machine readable code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns "<operation>.<reason>".
func (e *ServiceError) Code() string {
	return e.code
}

// Reason returns the trailing reason segment of the code.
func (e *ServiceError) Reason() string {
	if index := strings.LastIndexByte(e.code, '.'); index >= 0 {
		return e.code[index+1:]
	}
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// fault builds a client fault of the given kind without logging it.
func fault(operation, reason string, kind error, detail string) error {
	return newServiceError(operation, reason, fmt.Errorf("%w: %s", kind, detail))
}

// IsClientFault reports whether err was caused by the caller rather than the store.
func IsClientFault(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrConflict)
}

const (
	opServiceNew            = "catalog.service.new"
	opGetAggregates         = "catalog.get_aggregates"
	opSetReaction           = "catalog.set_reaction"
	opListHomeVideos        = "catalog.list_home_videos"
	opSearchVideos          = "catalog.search_videos"
	opListChannelVideos     = "catalog.list_channel_videos"
	opListHistory           = "catalog.list_history"
	opListLiked             = "catalog.list_liked"
	opListSubscribedVideos  = "catalog.list_subscribed_videos"
	opListPlaylists         = "catalog.list_playlists"
	opListPlaylistVideos    = "catalog.list_playlist_videos"
	opListPlaylistsForVideo = "catalog.list_playlists_for_video"
	opListComments          = "catalog.list_comments"
	opListSubscriptions     = "catalog.list_subscriptions"
	opGetVideo              = "catalog.get_video"
	opCreateVideo           = "catalog.create_video"
	opUpdateVideo           = "catalog.update_video"
	opRemoveVideo           = "catalog.remove_video"
	opRecordView            = "catalog.record_view"
	opTriggerWorkflow       = "catalog.trigger_workflow"
	opCreateComment         = "catalog.create_comment"
	opRemoveComment         = "catalog.remove_comment"
	opCreatePlaylist        = "catalog.create_playlist"
	opGetPlaylist           = "catalog.get_playlist"
	opRemovePlaylist        = "catalog.remove_playlist"
	opAddPlaylistVideo      = "catalog.add_playlist_video"
	opRemovePlaylistVideo   = "catalog.remove_playlist_video"
	opSubscribe             = "catalog.subscribe"
	opUnsubscribe           = "catalog.unsubscribe"
	opGetChannel            = "catalog.get_channel"
	opListCategories        = "catalog.list_categories"
)

package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxPlaylistNameLength        = 200
	maxPlaylistDescriptionLength = 2000
)

// CreatePlaylist creates an empty playlist owned by ownerID.
func (s *Service) CreatePlaylist(ctx context.Context, ownerID, name, description string) (Playlist, error) {
	if err := s.ready(opCreatePlaylist); err != nil {
		return Playlist{}, err
	}
	owner, err := requireViewer(opCreatePlaylist, ownerID)
	if err != nil {
		return Playlist{}, err
	}
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return Playlist{}, fault(opCreatePlaylist, "missing_name", ErrInvalidInput, "playlist name is required")
	}
	if err := checkLength(opCreatePlaylist, "name", trimmedName, maxPlaylistNameLength); err != nil {
		return Playlist{}, err
	}
	trimmedDescription := strings.TrimSpace(description)
	if err := checkLength(opCreatePlaylist, "description", trimmedDescription, maxPlaylistDescriptionLength); err != nil {
		return Playlist{}, err
	}

	id, err := s.newID(opCreatePlaylist)
	if err != nil {
		return Playlist{}, err
	}
	now := s.nowMillis()
	playlist := Playlist{
		ID:              id,
		UserID:          owner,
		Name:            trimmedName,
		Description:     trimmedDescription,
		CreatedAtMillis: now,
		UpdatedAtMillis: now,
	}
	if err := s.db.WithContext(ctx).Create(&playlist).Error; err != nil {
		return Playlist{}, s.storeFailure(opCreatePlaylist, "persist_failed", err,
			zap.String("user_id", owner),
			zap.String("playlist_id", id))
	}
	return playlist, nil
}

// GetPlaylist returns a playlist owned by the viewer.
func (s *Service) GetPlaylist(ctx context.Context, viewerID, playlistID string) (Playlist, error) {
	if err := s.ready(opGetPlaylist); err != nil {
		return Playlist{}, err
	}
	viewer, err := requireViewer(opGetPlaylist, viewerID)
	if err != nil {
		return Playlist{}, err
	}
	id, err := validateIdentifier(opGetPlaylist, "playlist_id", playlistID)
	if err != nil {
		return Playlist{}, err
	}
	playlist, err := ownedPlaylist(s.db.WithContext(ctx), opGetPlaylist, viewer, id)
	if err != nil {
		return Playlist{}, s.storeFailure(opGetPlaylist, "query_failed", err, zap.String("playlist_id", id))
	}
	return playlist, nil
}

// RemovePlaylist deletes a playlist owned by the viewer and its memberships.
func (s *Service) RemovePlaylist(ctx context.Context, viewerID, playlistID string) error {
	if err := s.ready(opRemovePlaylist); err != nil {
		return err
	}
	viewer, err := requireViewer(opRemovePlaylist, viewerID)
	if err != nil {
		return err
	}
	id, err := validateIdentifier(opRemovePlaylist, "playlist_id", playlistID)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ownedPlaylist(tx, opRemovePlaylist, viewer, id); err != nil {
			return err
		}
		if err := tx.Where("playlist_id = ?", id).Delete(&PlaylistVideo{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Playlist{}).Error
	})
	if err != nil {
		return s.storeFailure(opRemovePlaylist, "persist_failed", err,
			zap.String("user_id", viewer),
			zap.String("playlist_id", id))
	}
	return nil
}

// AddPlaylistVideo appends a visible video to a playlist owned by the viewer.
// Adding a video that is already a member is a Conflict.
func (s *Service) AddPlaylistVideo(ctx context.Context, viewerID, playlistID, videoID string) (PlaylistVideo, error) {
	if err := s.ready(opAddPlaylistVideo); err != nil {
		return PlaylistVideo{}, err
	}
	viewer, err := requireViewer(opAddPlaylistVideo, viewerID)
	if err != nil {
		return PlaylistVideo{}, err
	}
	playlist, err := validateIdentifier(opAddPlaylistVideo, "playlist_id", playlistID)
	if err != nil {
		return PlaylistVideo{}, err
	}
	video, err := validateIdentifier(opAddPlaylistVideo, "video_id", videoID)
	if err != nil {
		return PlaylistVideo{}, err
	}

	now := s.nowMillis()
	membership := PlaylistVideo{
		PlaylistID:      playlist,
		VideoID:         video,
		CreatedAtMillis: now,
		UpdatedAtMillis: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ownedPlaylist(tx, opAddPlaylistVideo, viewer, playlist); err != nil {
			return err
		}
		visible, err := videoAggregates.visible(tx, video, viewer)
		if err != nil {
			return err
		}
		if !visible {
			return fault(opAddPlaylistVideo, "video_not_found", ErrNotFound, video)
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&membership)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fault(opAddPlaylistVideo, "duplicate_video", ErrConflict, video)
		}
		return nil
	})
	if err != nil {
		return PlaylistVideo{}, s.storeFailure(opAddPlaylistVideo, "persist_failed", err,
			zap.String("playlist_id", playlist),
			zap.String("video_id", video))
	}
	return membership, nil
}

// RemovePlaylistVideo drops a video from a playlist owned by the viewer.
func (s *Service) RemovePlaylistVideo(ctx context.Context, viewerID, playlistID, videoID string) error {
	if err := s.ready(opRemovePlaylistVideo); err != nil {
		return err
	}
	viewer, err := requireViewer(opRemovePlaylistVideo, viewerID)
	if err != nil {
		return err
	}
	playlist, err := validateIdentifier(opRemovePlaylistVideo, "playlist_id", playlistID)
	if err != nil {
		return err
	}
	video, err := validateIdentifier(opRemovePlaylistVideo, "video_id", videoID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ownedPlaylist(tx, opRemovePlaylistVideo, viewer, playlist); err != nil {
			return err
		}
		result := tx.Where("playlist_id = ? AND video_id = ?", playlist, video).Delete(&PlaylistVideo{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fault(opRemovePlaylistVideo, "video_not_in_playlist", ErrNotFound, video)
		}
		return nil
	})
	if err != nil {
		return s.storeFailure(opRemovePlaylistVideo, "persist_failed", err,
			zap.String("playlist_id", playlist),
			zap.String("video_id", video))
	}
	return nil
}

// ownedPlaylist loads a playlist of the viewer. Playlists are private to their owner,
// so any other caller gets NotFound.
func ownedPlaylist(tx *gorm.DB, operation, viewerID, playlistID string) (Playlist, error) {
	var playlist Playlist
	result := tx.Where("id = ? AND user_id = ?", playlistID, viewerID).Limit(1).Find(&playlist)
	if result.Error != nil {
		return Playlist{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Playlist{}, fault(operation, "playlist_not_found", ErrNotFound, playlistID)
	}
	return playlist, nil
}

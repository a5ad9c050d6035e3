package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAggregatesCountsDistinctUsers(t *testing.T) {
	f := newFixture(t)
	video := f.addVideo("creator", "Launch", VisibilityPublic)

	for _, fan := range []string{"fan-1", "fan-2", "fan-3"} {
		_, err := f.service.SetReaction(f.ctx, fan, TargetVideo, video.ID, ReactionLike)
		require.NoError(t, err)
	}
	_, err := f.service.SetReaction(f.ctx, "critic", TargetVideo, video.ID, ReactionDislike)
	require.NoError(t, err)

	for _, viewer := range []string{"fan-1", "fan-2"} {
		require.NoError(t, f.service.RecordView(f.ctx, viewer, video.ID))
	}
	// A repeated view refreshes the existing row.
	f.clock.Tick()
	require.NoError(t, f.service.RecordView(f.ctx, "fan-1", video.ID))

	aggregates, err := f.service.GetAggregates(f.ctx, TargetVideo, []string{video.ID}, "bystander")
	require.NoError(t, err)
	assert.Equal(t, Aggregates{
		ViewCount:      2,
		LikeCount:      3,
		DislikeCount:   1,
		ViewerReaction: ViewerReactionNone,
	}, aggregates[video.ID])

	anonymous, err := f.service.GetAggregates(f.ctx, TargetVideo, []string{video.ID}, "")
	require.NoError(t, err)
	assert.Equal(t, ViewerReactionNone, anonymous[video.ID].ViewerReaction)
	assert.Equal(t, int64(3), anonymous[video.ID].LikeCount)

	critic, err := f.service.GetAggregates(f.ctx, TargetVideo, []string{video.ID}, "critic")
	require.NoError(t, err)
	assert.Equal(t, ViewerReactionDislike, critic[video.ID].ViewerReaction)
}

func TestGetAggregatesOmitsHiddenAndUnknownTargets(t *testing.T) {
	f := newFixture(t)
	public := f.addVideo("creator", "Public", VisibilityPublic)
	private := f.addVideo("creator", "Private", VisibilityPrivate)

	aggregates, err := f.service.GetAggregates(f.ctx, TargetVideo, []string{public.ID, private.ID, "missing", public.ID}, "fan")
	require.NoError(t, err)
	require.Len(t, aggregates, 1)
	assert.Contains(t, aggregates, public.ID)

	owner, err := f.service.GetAggregates(f.ctx, TargetVideo, []string{public.ID, private.ID}, "creator")
	require.NoError(t, err)
	assert.Len(t, owner, 2)

	empty, err := f.service.GetAggregates(f.ctx, TargetVideo, nil, "fan")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetAggregatesRejectsOversizedBatches(t *testing.T) {
	f := newFixture(t)
	ids := make([]string, 0, 101)
	for index := 0; index < 101; index++ {
		ids = append(ids, fmt.Sprintf("video-%d", index))
	}

	_, err := f.service.GetAggregates(f.ctx, TargetVideo, ids, "fan")
	requireFault(t, err, ErrInvalidInput, "too_many_targets")

	_, err = f.service.GetAggregates(f.ctx, TargetKind("channel"), []string{"video-1"}, "fan")
	requireFault(t, err, ErrInvalidInput, "invalid_target_kind")
}

func TestZeroValueServiceReportsMissingDatabase(t *testing.T) {
	service := &Service{}
	_, err := service.GetAggregates(t.Context(), TargetVideo, []string{"video-1"}, "")
	require.Error(t, err)
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, "catalog.get_aggregates.missing_database", serviceErr.Code())
	assert.False(t, IsClientFault(err))
}

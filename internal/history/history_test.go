package history

import (
	"context"
	"testing"
	"time"

	"clubprogress/internal/model"
	"clubprogress/lib/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func club(percentage float64, level int) *model.Club {
	return &model.Club{
		ClubId:   "club-uuid",
		ClubName: "Floor Speakers",
		Members: map[string]*model.Member{
			"jdoe": {
				Username: "jdoe",
				CurrentPathways: []model.Pathway{
					{Name: "Dynamic Leadership", CourseId: "C1", CurrentLevel: level, CompletionPercentage: percentage, Status: model.StatusActive},
					{Name: "Motivational Strategies", CourseId: "C2", CurrentLevel: 5, CompletionPercentage: 100, Status: model.StatusCompleted},
				},
			},
			"asmith": {Username: "asmith"},
		},
		Order: []string{"jdoe", "asmith"},
	}
}

func TestStore(t *testing.T) {
	store := NewStore(testutil.OpenDB(t, Schema))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	{
		res, err := store.Pull(ctx, "unknown-user")
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, res, 0)
	}

	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	runId, err := store.Push(ctx, first, club(40, 2))
	require.NoError(t, err)
	_, err = uuid.Parse(runId)
	require.NoError(t, err)

	_, err = store.Push(ctx, first.Add(7*24*time.Hour), club(60, 2))
	require.NoError(t, err)

	series, err := store.Pull(ctx, "jdoe")
	require.NoError(t, err)
	require.Len(t, series, 2)
	require.Equal(t, "Dynamic Leadership", series[0].Pathway)
	require.Len(t, series[0].Snapshots, 2)
	require.Equal(t, 40.0, series[0].Snapshots[0].Percentage)
	require.Equal(t, 60.0, series[0].Snapshots[1].Percentage)
	require.True(t, series[0].Snapshots[0].Time.Equal(first))
	require.Equal(t, "Motivational Strategies", series[1].Pathway)
	require.Equal(t, model.StatusCompleted, series[1].Snapshots[0].Status)

	runs, err := store.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.True(t, runs[0].Time.After(runs[1].Time))
	require.Equal(t, 2, runs[0].MemberCount)
	require.Equal(t, runId, runs[1].Id)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/history.db"

	store, closeDb, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = store.Push(ctx, time.Now(), club(10, 1))
	require.NoError(t, err)
	require.NoError(t, closeDb())

	// reopening applies the schema again without losing data
	store, closeDb, err = Open(ctx, path)
	require.NoError(t, err)
	defer closeDb()
	runs, err := store.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

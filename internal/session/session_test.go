package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"clubprogress/internal/components/telemetry"
	"clubprogress/internal/model"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "auth", "session.json"), telemetry.NewRecorder())

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	dashboard := "D-42"
	rec := &Record{
		Cookies: []Cookie{
			{Name: "CEContactId", Value: "12345", Domain: ".toastmasters.org", Path: "/"},
		},
		UserAgent:       "Mozilla/5.0",
		UserId:          "12345",
		ClubId:          "club-uuid",
		DashboardClubId: &dashboard,
		MemberEnrollmentStatus: []model.Enrollment{
			{Username: "jdoe", IsPaid: true, IsEnrolled: true},
		},
		Timestamp: NewTime(created),
		Expires:   NewTime(created.Add(8 * time.Hour)),
	}
	require.NoError(t, store.Save(rec))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, ok := store.LoadValid(created.Add(time.Hour))
	require.True(t, ok)
	if diff := cmp.Diff(rec, loaded, cmp.Comparer(func(a, b Time) bool { return a.Equal(b.Time) })); diff != "" {
		t.Fatal(diff)
	}

	value, ok := loaded.Cookie("CEContactId")
	require.True(t, ok)
	require.Equal(t, "12345", value)
}

func TestLoadValidSoftFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("missing file", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "session.json"), telemetry.NewRecorder())
		rec, ok := store.LoadValid(now)
		require.False(t, ok)
		require.Nil(t, rec)
	})

	t.Run("unparsable", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
		tel := telemetry.NewRecorder()
		_, ok := NewStore(path, tel).LoadValid(now)
		require.False(t, ok)
		require.Len(t, tel.Find(telemetry.SeverityWarning, report_store_load), 1)
	})

	t.Run("missing expires", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"user_id": "1", "club_id": "2"}`), 0600))
		_, ok := NewStore(path, telemetry.NewRecorder()).LoadValid(now)
		require.False(t, ok)
	})

	t.Run("bad expires", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"expires": "tomorrow"}`), 0600))
		_, ok := NewStore(path, telemetry.NewRecorder()).LoadValid(now)
		require.False(t, ok)
	})

	t.Run("expired", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"expires": "2026-03-01T11:59:59Z"}`), 0600))
		_, ok := NewStore(path, telemetry.NewRecorder()).LoadValid(now)
		require.False(t, ok)
	})

	t.Run("expires exactly now", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"expires": "2026-03-01T12:00:00Z"}`), 0600))
		_, ok := NewStore(path, telemetry.NewRecorder()).LoadValid(now)
		require.False(t, ok)
	})
}

func TestZonelessTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	contents := `{
		"cookies": [],
		"user_agent": "ua",
		"user_id": "1",
		"club_id": "2",
		"dashboard_club_id": null,
		"member_enrollment_status": null,
		"timestamp": "2026-03-01T08:00:00.123456",
		"expires": "2026-03-01T16:00:00.123456"
	}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	rec, ok := NewStore(path, telemetry.NewRecorder()).LoadValid(now)
	require.True(t, ok)
	require.Nil(t, rec.DashboardClubId)
	require.Nil(t, rec.MemberEnrollmentStatus)
	require.True(t, rec.Usable())
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(path, telemetry.NewRecorder())
	require.NoError(t, store.Clear())

	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0600))
	require.NoError(t, store.Clear())
	_, err := os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewStoreRequiresPath(t *testing.T) {
	require.Panics(t, func() {
		NewStore("", telemetry.NewRecorder())
	})
}

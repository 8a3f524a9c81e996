package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"clubprogress/internal/basecamp"
	"clubprogress/internal/components/telemetry"
	"clubprogress/internal/config"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// platform is a fake of the platform API: club "c1" has two overview pages and one
// progress page, detail responses are looked up by "course/username".
type platform struct {
	srv           *httptest.Server
	detailStatus  map[string]int
	failProgress  bool
	failOverview2 bool
	detailHits    int64
}

func (p *platform) handler(w http.ResponseWriter, r *http.Request) {
	page := r.URL.Query().Get("page")
	switch {
	case r.URL.Path == "/overview/" && page == "1":
		fmt.Fprintf(w, `{"results": [{"user": {"id": 1, "username": "jdoe"}}], "next": "%s/overview/?club=c1&page=2"}`, p.srv.URL)
	case r.URL.Path == "/overview/" && page == "2":
		if p.failOverview2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"results": [{"user": {"id": 2, "username": "asmith"}}], "next": null}`))
	case r.URL.Path == "/progress/":
		if p.failProgress {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"results": [
			{"user": {"username": "jdoe"}, "course_id": "C1", "path_name": "Dynamic Leadership"},
			{"user": {"username": "jdoe"}, "course_id": "C2", "path_name": "Presentation Mastery"},
			{"user": {"username": "asmith"}, "course_id": "C1", "path_name": "Dynamic Leadership"}
		], "next": null}`))
	case strings.HasPrefix(r.URL.Path, "/detail/"):
		atomic.AddInt64(&p.detailHits, 1)
		key := strings.TrimPrefix(r.URL.Path, "/detail/") + "/" + r.URL.Query().Get("user")
		if status, ok := p.detailStatus[key]; ok {
			w.WriteHeader(status)
			return
		}
		fmt.Fprintf(w, `{"blocks": {"display_name": %q}}`, key)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newPlatform(t *testing.T) *platform {
	p := &platform{detailStatus: map[string]int{}}
	p.srv = httptest.NewServer(http.HandlerFunc(p.handler))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *platform) orchestrator(t *testing.T, maxConcurrency int64, tel telemetry.API) Orchestrator {
	endpoints, err := basecamp.NewEndpoints(config.Endpoints{
		Overview:       p.srv.URL + "/overview/?club={club_id}&page={page}",
		Progress:       p.srv.URL + "/progress/?club={club_id}&page={page}",
		ProgressDetail: p.srv.URL + "/detail/{course_id}?user={username}",
		Profile:        p.srv.URL + "/profile/{user_id}/",
	})
	require.NoError(t, err)
	client, err := basecamp.NewClient(basecamp.Options{}, tel)
	require.NoError(t, err)
	return NewOrchestrator(client, endpoints, maxConcurrency, tel)
}

func TestFetch(t *testing.T) {
	p := newPlatform(t)
	tel := telemetry.NewRecorder()
	o := p.orchestrator(t, 0, tel)

	dataset, details, err := o.Fetch(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, dataset.Pages[basecamp.EndpointOverview], 2)
	require.Len(t, dataset.Pages[basecamp.EndpointProgress], 1)
	require.Equal(t, 3, details.Total)
	require.Empty(t, details.Failures)
	require.False(t, details.SessionExpired)

	var got []UserCourse
	for _, e := range dataset.Details {
		got = append(got, UserCourse{Username: e.Username, CourseId: e.CourseId})
	}
	expected := []UserCourse{
		{Username: "asmith", CourseId: "C1"},
		{Username: "jdoe", CourseId: "C1"},
		{Username: "jdoe", CourseId: "C2"},
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Fatal(diff)
	}
	require.NotEmpty(t, tel.Find(telemetry.SeverityInfo, "detail fetches completed"))
}

func TestFetchPrimaryAllOrNothing(t *testing.T) {
	t.Run("first page failure", func(t *testing.T) {
		p := newPlatform(t)
		p.failProgress = true
		o := p.orchestrator(t, 0, telemetry.NewRecorder())

		pages, err := o.FetchPrimary(context.Background(), o.endpoints.Primary("c1"))
		require.Nil(t, pages)
		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		require.Len(t, fetchErr.Failures, 1)
		require.Equal(t, basecamp.EndpointProgress, fetchErr.Failures[0].Name)
		require.Equal(t, http.StatusInternalServerError, fetchErr.Failures[0].Status)
	})

	t.Run("pagination failure", func(t *testing.T) {
		p := newPlatform(t)
		p.failOverview2 = true
		o := p.orchestrator(t, 1, telemetry.NewRecorder())

		_, _, err := o.Fetch(context.Background(), "c1")
		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		require.Equal(t, basecamp.EndpointOverview, fetchErr.Failures[0].Name)
		require.Equal(t, 1, fetchErr.Failures[0].Pages)
		// the detail phase never starts
		require.Zero(t, atomic.LoadInt64(&p.detailHits))
	})
}

func TestFetchDetailsSessionExpired(t *testing.T) {
	p := newPlatform(t)
	p.detailStatus["C1/jdoe"] = http.StatusUnauthorized
	p.detailStatus["C2/jdoe"] = http.StatusNotFound
	tel := telemetry.NewRecorder()
	o := p.orchestrator(t, 2, tel)

	pairs := []UserCourse{
		{Username: "jdoe", CourseId: "C1"},
		{Username: "asmith", CourseId: "C1"},
		{Username: "jdoe", CourseId: "C2"},
		{Username: "bnguyen", CourseId: "C3"},
	}
	result, err := o.FetchDetails(context.Background(), pairs)
	require.NoError(t, err)
	require.True(t, result.SessionExpired)
	require.Equal(t, 4, result.Total)
	require.Len(t, result.Entries, 2)
	require.Equal(t, "asmith", result.Entries[0].Username)
	require.Equal(t, "bnguyen", result.Entries[1].Username)
	require.JSONEq(t, `{"blocks": {"display_name": "C3/bnguyen"}}`, string(result.Entries[1].Data))

	require.Len(t, result.Failures, 2)
	var expired *SessionExpiredError
	require.ErrorAs(t, result.Failures[0], &expired)
	require.Equal(t, UserCourse{Username: "jdoe", CourseId: "C1"}, expired.Pair)

	var detailErr *DetailFetchError
	require.ErrorAs(t, result.Failures[1], &detailErr)
	require.Equal(t, http.StatusNotFound, detailErr.Status)
	require.False(t, errors.As(result.Failures[1], &expired))

	require.Len(t, tel.Find(telemetry.SeverityWarning, report_orchestrator_fetch_details), 2)
}

func TestFetchDetailsEmpty(t *testing.T) {
	p := newPlatform(t)
	result, err := p.orchestrator(t, 0, telemetry.NewRecorder()).FetchDetails(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, result.Entries)
	require.Zero(t, result.Total)
}

func TestUserCourseCombinations(t *testing.T) {
	page := func(results ...string) basecamp.Page {
		raw := make([]json.RawMessage, len(results))
		for i, r := range results {
			raw[i] = json.RawMessage(r)
		}
		return basecamp.Page{Results: raw}
	}
	progress := []basecamp.Page{
		page(
			`{"user": {"username": "jdoe"}, "course_id": "C1"}`,
			`{"user": {"username": "jdoe"}, "course_id": "C1"}`,
			`{"user": {"username": "asmith"}, "course_id": 42}`,
		),
		page(
			`{"user": {"username": "jdoe"}, "course_id": "C1"}`,
			`{"user": {}, "course_id": "C9"}`,
			`{"user": {"username": "nocourse"}}`,
			`{"user": {"username": "jdoe"}, "course_id": "C0"}`,
		),
	}

	o := NewOrchestrator(&basecamp.Client{}, basecamp.Endpoints{}, 0, telemetry.NewRecorder())
	expected := []UserCourse{
		{Username: "asmith", CourseId: "42"},
		{Username: "jdoe", CourseId: "C0"},
		{Username: "jdoe", CourseId: "C1"},
	}
	if diff := cmp.Diff(expected, o.UserCourseCombinations(progress)); diff != "" {
		t.Fatal(diff)
	}
}

package basecamp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"clubprogress/internal/components/telemetry"
	"clubprogress/internal/config"
	"clubprogress/internal/session"

	"github.com/stretchr/testify/require"
)

// pagedServer serves /items?page=N, page n has results until emptyAt (0 = never) and
// always advertises a next page.
func pagedServer(t *testing.T, emptyAt, failAt int) (*httptest.Server, *int64) {
	var hits int64
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		n, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if n == failAt {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		results := []int{n}
		if emptyAt != 0 && n >= emptyAt {
			results = []int{}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": results,
			"next":    fmt.Sprintf("%s/items?page=%d", srv.URL, n+1),
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestClient(t *testing.T) *Client {
	client, err := NewClient(Options{Timeout: 5 * time.Second}, telemetry.NewRecorder())
	require.NoError(t, err)
	return client
}

func firstPage(t *testing.T, client *Client, srv *httptest.Server) Page {
	page, status, ok := client.GetPage(context.Background(), srv.URL+"/items?page=1")
	require.True(t, ok)
	require.Equal(t, http.StatusOK, status)
	return page
}

func TestPaginateStopsAtMaxPages(t *testing.T) {
	srv, hits := pagedServer(t, 0, 0)
	client := newTestClient(t)

	var collected []Page
	count, complete := client.Paginate(context.Background(), firstPage(t, client, srv), func(p Page) {
		collected = append(collected, p)
	})
	require.True(t, complete)
	require.Equal(t, MaxPages, count)
	require.Len(t, collected, MaxPages-1)
	require.EqualValues(t, MaxPages, atomic.LoadInt64(hits))
}

func TestPaginateStopsAtEmptyResults(t *testing.T) {
	srv, hits := pagedServer(t, 4, 0)
	client := newTestClient(t)

	var collected []Page
	count, complete := client.Paginate(context.Background(), firstPage(t, client, srv), func(p Page) {
		collected = append(collected, p)
	})
	require.True(t, complete)
	require.Equal(t, 3, count)
	require.Len(t, collected, 2)
	// the empty page is fetched but nothing after it
	require.EqualValues(t, 4, atomic.LoadInt64(hits))
}

func TestPaginateFirstPageEmpty(t *testing.T) {
	srv, hits := pagedServer(t, 1, 0)
	client := newTestClient(t)

	count, complete := client.Paginate(context.Background(), firstPage(t, client, srv), func(Page) {
		t.Fatal("nothing should be collected")
	})
	require.True(t, complete)
	require.Equal(t, 1, count)
	require.EqualValues(t, 1, atomic.LoadInt64(hits))
}

func TestPaginateStopsOnFailure(t *testing.T) {
	srv, hits := pagedServer(t, 0, 3)
	tel := telemetry.NewRecorder()
	client, err := NewClient(Options{}, tel)
	require.NoError(t, err)

	page, _, ok := client.GetPage(context.Background(), srv.URL+"/items?page=1")
	require.True(t, ok)

	count, complete := client.Paginate(context.Background(), page, func(Page) {})
	require.False(t, complete)
	require.Equal(t, 2, count)
	// no retry of the failed page
	require.EqualValues(t, 3, atomic.LoadInt64(hits))
	require.NotEmpty(t, tel.Find(telemetry.SeverityWarning, report_client_paginate))
}

func TestPaginateWithoutNext(t *testing.T) {
	client := newTestClient(t)
	count, complete := client.Paginate(context.Background(), Page{
		Results: []json.RawMessage{json.RawMessage(`1`)},
	}, func(Page) {
		t.Fatal("nothing should be collected")
	})
	require.True(t, complete)
	require.Equal(t, 1, count)
}

func TestGetStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(`{"hello": "world"}`))
		case "/unauthorized":
			w.WriteHeader(http.StatusUnauthorized)
		case "/html":
			w.Write([]byte(`<html></html>`))
		case "/null":
			w.Write([]byte(`null`))
		case "/empty":
			w.Write([]byte(`{ }`))
		}
	}))
	defer srv.Close()
	client := newTestClient(t)
	ctx := context.Background()

	payload, status, ok := client.Get(ctx, srv.URL+"/ok")
	require.True(t, ok)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"hello": "world"}`, string(payload))

	_, status, ok = client.Get(ctx, srv.URL+"/unauthorized")
	require.False(t, ok)
	require.Equal(t, http.StatusUnauthorized, status)

	_, status, ok = client.Get(ctx, srv.URL+"/html")
	require.False(t, ok)
	require.Equal(t, http.StatusOK, status)

	for _, path := range []string{"/null", "/empty"} {
		payload, status, ok = client.Get(ctx, srv.URL+path)
		require.False(t, ok, path)
		require.Nil(t, payload, path)
		require.Equal(t, http.StatusOK, status, path)
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	_, status, ok = client.Get(ctx, closed.URL)
	require.False(t, ok)
	require.Equal(t, 0, status)
}

func TestSessionHeadersAndCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("CEContactId")
		if err != nil || cookie.Value != "12345" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" ||
			r.Header.Get("User-Agent") != "session-agent" ||
			r.Header.Get("Referer") != "https://example.org/dashboard/" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	rec := &session.Record{
		Cookies:   []session.Cookie{{Name: "CEContactId", Value: "12345", Path: "/"}},
		UserAgent: "session-agent",
	}
	client, err := NewClient(OptionsFromSession(rec, Options{Referer: "https://example.org/dashboard/"}), telemetry.NewRecorder())
	require.NoError(t, err)

	_, status, ok := client.Get(context.Background(), srv.URL)
	require.True(t, ok)
	require.Equal(t, http.StatusOK, status)
}

func TestEndpoints(t *testing.T) {
	endpoints, err := NewEndpoints(config.Endpoints{
		Overview:       "https://example.org/overview/?club={club_id}&page={page}",
		Progress:       "https://example.org/progress/?club={club_id}&page={page}",
		ProgressDetail: "https://example.org/progress/{course_id}/detail?user={username}",
		Profile:        "https://example.org/profile/{user_id}/about/",
	})
	require.NoError(t, err)

	require.Equal(t, "https://example.org/overview/?club=abc&page=1", endpoints.Overview("abc", 1))
	require.Equal(t, "https://example.org/progress/?club=abc&page=2", endpoints.Progress("abc", 2))
	require.Equal(t, "https://example.org/progress/C1/detail?user=j%20doe", endpoints.ProgressDetail("C1", "j doe"))
	require.Equal(t, "https://example.org/profile/42/about/", endpoints.Profile("42"))

	primary := endpoints.Primary("abc")
	require.Len(t, primary, 2)
	require.Equal(t, EndpointOverview, primary[0].Name)
	require.Equal(t, EndpointProgress, primary[1].Name)

	_, err = NewEndpoints(config.Endpoints{Overview: "https://example.org/{unclosed"})
	require.Error(t, err)
}

func TestDecodeResults(t *testing.T) {
	pages := []Page{
		{Results: []json.RawMessage{json.RawMessage(`{"a": 1}`), json.RawMessage(`"oops"`)}},
		{Results: []json.RawMessage{json.RawMessage(`{"a": 2}`)}},
	}
	out, skipped := DecodeResults[struct {
		A int `json:"a"`
	}](pages)
	require.Equal(t, 1, skipped)
	require.Len(t, out, 2)
	require.Equal(t, 2, out[1].A)
}

package xtream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
	"github.com/iptvdeck/iptv-deck/internal/httpclient"
)

func testClient(srv *httptest.Server) *Client {
	c := New(srv.URL, "user", "pass")
	c.HTTPClient = srv.Client()
	c.Retry = httpclient.RetryPolicy{Retries: 2, Delay: 5 * time.Millisecond}
	return c
}

func TestAuthenticate_Active(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("username"); got != "user" {
			t.Errorf("username = %q", got)
		}
		w.Write([]byte(`{
			"user_info": {"username":"user","status":"Active","exp_date":"1735689600","max_connections":"2"},
			"server_info": {"url":"panel.example.com","port":"8080","https_port":"443","server_protocol":"http"}
		}`))
	}))
	defer srv.Close()

	auth, err := testClient(srv).Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if auth.Status != "Active" || auth.MaxConnections != 2 || auth.Port != "8080" {
		t.Errorf("unexpected auth info: %+v", auth)
	}
}

func TestAuthenticate_BannedIsInactive_NoRetry(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Write([]byte(`{"user_info":{"username":"user","status":"Banned"},"server_info":{"url":"x","port":"80"}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv).Authenticate(context.Background())
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("err = %v, want ErrAccountInactive", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (account status is never retried)", attempts)
	}
}

func TestAuthenticate_MissingBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user_info": null}`))
	}))
	defer srv.Close()

	_, err := testClient(srv).Authenticate(context.Background())
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestListCategories_NumericStringIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("action"); got != "get_vod_categories" {
			t.Errorf("action = %q", got)
		}
		w.Write([]byte(`[
			{"category_id":"7","category_name":"Action","parent_id":0},
			{"category_id":12,"category_name":"Drama","parent_id":"7"},
			{"category_id":"bogus","category_name":"Broken"}
		]`))
	}))
	defer srv.Close()

	cats, err := testClient(srv).ListCategories(context.Background(), catalog.KindMovie)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("len = %d, want 2 (unparseable id skipped)", len(cats))
	}
	if cats[0].ID != 7 || cats[0].ParentID != 0 || cats[0].Kind != catalog.KindMovie {
		t.Errorf("cats[0] = %+v", cats[0])
	}
	if cats[1].ID != 12 || cats[1].ParentID != 7 {
		t.Errorf("cats[1] = %+v", cats[1])
	}
}

func TestListCategories_EmptyBodyIsEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	cats, err := testClient(srv).ListCategories(context.Background(), catalog.KindLive)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 0 {
		t.Errorf("len = %d, want 0", len(cats))
	}
}

func TestListCategories_NoContentIsEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cats, err := testClient(srv).ListCategories(context.Background(), catalog.KindLive)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 0 {
		t.Errorf("len = %d, want 0 (2xx with empty body is an empty list)", len(cats))
	}
}

func TestListCategories_StalledBodyRetriedAsTimeout(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		// Headers arrive fine; the body stalls past the client timeout, so
		// the failure surfaces from the read, not the connect.
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[{"category_id"`))
		w.(http.Flusher).Flush()
		time.Sleep(250 * time.Millisecond)
	}))
	defer srv.Close()

	c := testClient(srv)
	c.HTTPClient.Timeout = 80 * time.Millisecond

	_, err := c.ListCategories(context.Background(), catalog.KindLive)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3 (retries=2 after a mid-body timeout)", got)
	}
}

func TestListCategories_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := testClient(srv).ListCategories(context.Background(), catalog.KindLive)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestListItems_HTTPErrorNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv).ListItems(context.Background(), catalog.KindLive, 0)
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v, want *HTTPError 502", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestListItems_Movies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("category_id"); got != "9" {
			t.Errorf("category_id = %q, want 9", got)
		}
		w.Write([]byte(`[
			{"stream_id":"100","name":"First","container_extension":"mkv","rating":7.5},
			{"stream_id":101,"name":"Second","container_extension":""}
		]`))
	}))
	defer srv.Close()

	items, err := testClient(srv).ListItems(context.Background(), catalog.KindMovie, 9)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	m := items[0].(catalog.Movie)
	if m.ID != 100 || m.Extension != "mkv" || m.Rating != "7.5" {
		t.Errorf("items[0] = %+v", m)
	}
	// category_id omitted by panel: fall back to the requested category.
	if items[1].ItemCategory() != 9 {
		t.Errorf("items[1] category = %d, want 9", items[1].ItemCategory())
	}
	if items[1].(catalog.Movie).Extension != "mp4" {
		t.Errorf("empty container_extension should default to mp4")
	}
}

func TestListItems_SeriesObjectForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"55":{"series_id":55,"name":"Show","category_id":"3"}}`))
	}))
	defer srv.Close()

	items, err := testClient(srv).ListItems(context.Background(), catalog.KindSeries, 0)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 || items[0].ItemID() != 55 || items[0].ItemCategory() != 3 {
		t.Fatalf("items = %+v", items)
	}
}

func TestSeriesDetail_GroupsBySeason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("series_id"); got != "55" {
			t.Errorf("series_id = %q", got)
		}
		w.Write([]byte(`{"episodes":{
			"1":[{"id":"900","episode_num":1,"title":"Pilot","season":1,"container_extension":"mkv"}],
			"2":[{"id":"901","episode_num":"1","title":"Return","season":"2"}]
		}}`))
	}))
	defer srv.Close()

	detail, err := testClient(srv).SeriesDetail(context.Background(), 55)
	if err != nil {
		t.Fatalf("SeriesDetail: %v", err)
	}
	if len(detail.EpisodesBySeason) != 2 {
		t.Fatalf("seasons = %d, want 2", len(detail.EpisodesBySeason))
	}
	ep := detail.EpisodesBySeason[1][0]
	if ep.ID != 900 || ep.Extension != "mkv" || ep.Title != "Pilot" {
		t.Errorf("season 1 episode = %+v", ep)
	}
	if detail.EpisodesBySeason[2][0].SeasonNum != 2 {
		t.Errorf("season num = %d, want 2", detail.EpisodesBySeason[2][0].SeasonNum)
	}
}

func TestStreamURLs(t *testing.T) {
	c := New("http://panel.example.com:8080/", "u ser", "p@ss")
	tests := []struct {
		kind catalog.Kind
		id   int
		ext  string
		want string
	}{
		{catalog.KindLive, 42, "", "http://panel.example.com:8080/live/u%20ser/p@ss/42.ts"},
		{catalog.KindLive, 42, "m3u8", "http://panel.example.com:8080/live/u%20ser/p@ss/42.m3u8"},
		{catalog.KindMovie, 7, "mkv", "http://panel.example.com:8080/movie/u%20ser/p@ss/7.mkv"},
		{catalog.KindSeries, 900, "", "http://panel.example.com:8080/series/u%20ser/p@ss/900.mp4"},
	}
	for _, tt := range tests {
		if got := c.StreamURL(tt.kind, tt.id, tt.ext); got != tt.want {
			t.Errorf("StreamURL(%s,%d,%q) = %q, want %q", tt.kind, tt.id, tt.ext, got, tt.want)
		}
	}
}

func TestProbe_Timeout(t *testing.T) {
	// A server that never answers within the context deadline.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := New(srv.URL, "user", "pass")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	res := c.Probe(ctx)
	if res.Status != ProbeTimeout {
		t.Fatalf("status = %q, want %q (err=%v)", res.Status, ProbeTimeout, res.Err)
	}
}

// Package xtream is the authenticated client for Xtream-Codes-style catalog
// panels (player_api.php). It owns timeout/retry/cancellation policy,
// defensive payload parsing and stream URL construction. It performs no
// caching; the cache store sits above it.
package xtream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
	"github.com/iptvdeck/iptv-deck/internal/httpclient"
	"github.com/iptvdeck/iptv-deck/internal/metrics"
)

const userAgent = "IPTVDeck/1.0"

// statusActive is the account-status sentinel a healthy panel returns.
// Anything else ("Banned", "Expired", "Disabled") means the account cannot
// stream and authentication fails with ErrAccountInactive.
const statusActive = "Active"

// Client talks to one provider panel. Safe for concurrent use.
type Client struct {
	base string // e.g. http://provider:8080, no trailing slash
	user string
	pass string

	// HTTPClient and Retry may be replaced before first use (the probe path
	// swaps in a short-timeout client). Defaults come from httpclient.
	HTTPClient *http.Client
	Retry      httpclient.RetryPolicy

	sem *httpclient.HostSemaphore
}

// New returns a client with the default timeout/retry policy
// (30s per request, 2 retries, 1s apart).
func New(baseURL, user, pass string) *Client {
	return &Client{
		base:       strings.TrimSuffix(baseURL, "/"),
		user:       user,
		pass:       pass,
		HTTPClient: httpclient.Default(),
		Retry:      httpclient.DefaultRetryPolicy,
		sem:        httpclient.GlobalHostSem,
	}
}

// Base returns the panel base URL (used for server-identity derivation).
func (c *Client) Base() string { return c.base }

// apiURL builds a player_api.php URL with credentials and extra query params.
// Credentials are query-escaped to prevent injection from special chars.
func (c *Client) apiURL(action string, params map[string]string) string {
	var b strings.Builder
	b.WriteString(c.base)
	b.WriteString("/player_api.php?username=")
	b.WriteString(url.QueryEscape(c.user))
	b.WriteString("&password=")
	b.WriteString(url.QueryEscape(c.pass))
	if action != "" {
		b.WriteString("&action=")
		b.WriteString(action)
	}
	for k, v := range params {
		b.WriteString("&")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(url.QueryEscape(v))
	}
	return b.String()
}

// apiGet performs one catalog API call and returns the raw body.
// Transport failures (including a timeout mid-body) are retried per c.Retry;
// non-2xx statuses and malformed payloads are not. Errors are always from the
// package taxonomy.
func (c *Client) apiGet(ctx context.Context, reqURL string) (body []byte, err error) {
	defer func() { metrics.APIRequests.WithLabelValues(outcomeLabel(err)).Inc() }()

	release := c.sem.Acquire(c.base)
	defer release()

	header := http.Header{"User-Agent": []string{userAgent}}
	resp, derr := httpclient.GetWithRetry(ctx, c.HTTPClient, reqURL, header, c.Retry)
	if derr != nil {
		return nil, classifyTransport(derr)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: reqURL}
	}
	return resp.Body, nil
}

// AuthInfo is the validated authenticate() result.
type AuthInfo struct {
	Username       string
	Status         string
	ExpDate        string
	MaxConnections int

	ServerURL      string
	Port           string
	HTTPSPort      string
	ServerProtocol string
}

// Authenticate calls the bare player_api.php endpoint and validates the
// account. Fails with ErrInvalidCredentials when the response lacks the
// user_info/server_info blocks, or ErrAccountInactive when the account status
// is not "Active". Authentication-class failures are never retried (only the
// transport layer retries, and only on timeout/network errors).
func (c *Client) Authenticate(ctx context.Context) (*AuthInfo, error) {
	body, err := c.apiGet(ctx, c.apiURL("", nil))
	if err != nil {
		return nil, err
	}
	var raw struct {
		UserInfo *struct {
			Username       string             `json:"username"`
			Status         catalog.FlexString `json:"status"`
			ExpDate        catalog.FlexString `json:"exp_date"`
			MaxConnections catalog.FlexInt    `json:"max_connections"`
		} `json:"user_info"`
		ServerInfo *struct {
			URL            string             `json:"url"`
			Port           catalog.FlexString `json:"port"`
			HTTPSPort      catalog.FlexString `json:"https_port"`
			ServerProtocol string             `json:"server_protocol"`
		} `json:"server_info"`
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty auth response", ErrInvalidCredentials)
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: auth: %v", ErrMalformed, err)
	}
	if raw.UserInfo == nil || raw.ServerInfo == nil {
		return nil, fmt.Errorf("%w: missing account/server info", ErrInvalidCredentials)
	}
	status := raw.UserInfo.Status.String()
	if status != statusActive {
		return nil, fmt.Errorf("%w: status %q", ErrAccountInactive, status)
	}
	return &AuthInfo{
		Username:       raw.UserInfo.Username,
		Status:         status,
		ExpDate:        raw.UserInfo.ExpDate.String(),
		MaxConnections: raw.UserInfo.MaxConnections.Int(),
		ServerURL:      raw.ServerInfo.URL,
		Port:           raw.ServerInfo.Port.String(),
		HTTPSPort:      raw.ServerInfo.HTTPSPort.String(),
		ServerProtocol: raw.ServerInfo.ServerProtocol,
	}, nil
}

func categoriesAction(kind catalog.Kind) string {
	switch kind {
	case catalog.KindLive:
		return "get_live_categories"
	case catalog.KindMovie:
		return "get_vod_categories"
	default:
		return "get_series_categories"
	}
}

func itemsAction(kind catalog.Kind) string {
	switch kind {
	case catalog.KindLive:
		return "get_live_streams"
	case catalog.KindMovie:
		return "get_vod_streams"
	default:
		return "get_series"
	}
}

// ListCategories fetches and normalizes the category list for one kind.
// An empty response body is an empty list, not an error.
func (c *Client) ListCategories(ctx context.Context, kind catalog.Kind) ([]catalog.Category, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("list categories: unknown kind %q", kind)
	}
	body, err := c.apiGet(ctx, c.apiURL(categoriesAction(kind), nil))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return []catalog.Category{}, nil
	}
	var raw []struct {
		CategoryID   catalog.FlexInt `json:"category_id"`
		CategoryName string          `json:"category_name"`
		ParentID     catalog.FlexInt `json:"parent_id"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, categoriesAction(kind), err)
	}
	out := make([]catalog.Category, 0, len(raw))
	for _, r := range raw {
		id := r.CategoryID.Int()
		if id == 0 {
			continue
		}
		name := strings.TrimSpace(r.CategoryName)
		if name == "" {
			name = "Category " + strconv.Itoa(id)
		}
		out = append(out, catalog.Category{
			ID:       id,
			Name:     name,
			ParentID: r.ParentID.Int(),
			Kind:     kind,
		})
	}
	return out, nil
}

// ListItems fetches and normalizes items of one kind. categoryID 0 means
// "all categories of this kind". API-returned order is preserved.
func (c *Client) ListItems(ctx context.Context, kind catalog.Kind, categoryID int) ([]catalog.Item, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("list items: unknown kind %q", kind)
	}
	params := map[string]string{}
	if categoryID > 0 {
		params["category_id"] = strconv.Itoa(categoryID)
	}
	body, err := c.apiGet(ctx, c.apiURL(itemsAction(kind), params))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return []catalog.Item{}, nil
	}
	switch kind {
	case catalog.KindLive:
		return decodeChannels(body, categoryID)
	case catalog.KindMovie:
		return decodeMovies(body, categoryID)
	default:
		return decodeSeries(body, categoryID)
	}
}

func decodeChannels(body []byte, categoryID int) ([]catalog.Item, error) {
	var raw []struct {
		Num          catalog.FlexInt    `json:"num"`
		Name         string             `json:"name"`
		StreamID     catalog.FlexInt    `json:"stream_id"`
		StreamIcon   string             `json:"stream_icon"`
		EPGChannelID catalog.FlexString `json:"epg_channel_id"`
		CategoryID   catalog.FlexInt    `json:"category_id"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: get_live_streams: %v", ErrMalformed, err)
	}
	out := make([]catalog.Item, 0, len(raw))
	for _, r := range raw {
		id := r.StreamID.Int()
		if id == 0 {
			continue
		}
		name := strings.TrimSpace(r.Name)
		if name == "" {
			name = "Channel " + strconv.Itoa(id)
		}
		out = append(out, catalog.Channel{
			ID:           id,
			Name:         name,
			CategoryID:   itemCategory(r.CategoryID.Int(), categoryID),
			Num:          r.Num.Int(),
			Icon:         r.StreamIcon,
			EPGChannelID: r.EPGChannelID.String(),
		})
	}
	return out, nil
}

func decodeMovies(body []byte, categoryID int) ([]catalog.Item, error) {
	var raw []struct {
		Name               string             `json:"name"`
		StreamID           catalog.FlexInt    `json:"stream_id"`
		StreamIcon         string             `json:"stream_icon"`
		Rating             catalog.FlexString `json:"rating"`
		CategoryID         catalog.FlexInt    `json:"category_id"`
		ContainerExtension string             `json:"container_extension"`
		Added              catalog.FlexString `json:"added"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: get_vod_streams: %v", ErrMalformed, err)
	}
	out := make([]catalog.Item, 0, len(raw))
	for _, r := range raw {
		id := r.StreamID.Int()
		if id == 0 {
			continue
		}
		ext := r.ContainerExtension
		if ext == "" || len(ext) > 5 {
			ext = "mp4"
		}
		out = append(out, catalog.Movie{
			ID:         id,
			Name:       strings.TrimSpace(r.Name),
			CategoryID: itemCategory(r.CategoryID.Int(), categoryID),
			Icon:       r.StreamIcon,
			Rating:     r.Rating.String(),
			Extension:  ext,
			Added:      r.Added.String(),
		})
	}
	return out, nil
}

func decodeSeries(body []byte, categoryID int) ([]catalog.Item, error) {
	type rawSeries struct {
		Name        string             `json:"name"`
		SeriesID    catalog.FlexInt    `json:"series_id"`
		ID          catalog.FlexInt    `json:"id"`
		Cover       string             `json:"cover"`
		Plot        string             `json:"plot"`
		Rating      catalog.FlexString `json:"rating"`
		CategoryID  catalog.FlexInt    `json:"category_id"`
		ReleaseDate catalog.FlexString `json:"releaseDate"`
	}
	var raw []rawSeries
	if err := json.Unmarshal(body, &raw); err != nil {
		// Some panels return an object keyed by series id instead of an array.
		var m map[string]rawSeries
		if err2 := json.Unmarshal(body, &m); err2 != nil {
			return nil, fmt.Errorf("%w: get_series: %v", ErrMalformed, err)
		}
		for _, v := range m {
			raw = append(raw, v)
		}
	}
	out := make([]catalog.Item, 0, len(raw))
	for _, r := range raw {
		id := r.SeriesID.Int()
		if id == 0 {
			id = r.ID.Int()
		}
		if id == 0 {
			continue
		}
		name := strings.TrimSpace(r.Name)
		if name == "" {
			name = "Series " + strconv.Itoa(id)
		}
		out = append(out, catalog.Series{
			ID:          id,
			Name:        name,
			CategoryID:  itemCategory(r.CategoryID.Int(), categoryID),
			Cover:       r.Cover,
			Rating:      r.Rating.String(),
			Plot:        r.Plot,
			ReleaseDate: r.ReleaseDate.String(),
		})
	}
	return out, nil
}

// itemCategory prefers the record's own category_id but falls back to the
// requested category — per-category responses from some panels omit the field.
func itemCategory(own, requested int) int {
	if own != 0 {
		return own
	}
	return requested
}

// SeriesDetail fetches get_series_info and groups episodes by season.
func (c *Client) SeriesDetail(ctx context.Context, seriesID int) (*catalog.SeriesDetail, error) {
	params := map[string]string{"series_id": strconv.Itoa(seriesID)}
	body, err := c.apiGet(ctx, c.apiURL("get_series_info", params))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return &catalog.SeriesDetail{EpisodesBySeason: map[int][]catalog.Episode{}}, nil
	}
	var raw struct {
		Episodes map[string][]struct {
			ID                 catalog.FlexInt `json:"id"`
			EpisodeNum         catalog.FlexInt `json:"episode_num"`
			Title              string          `json:"title"`
			Season             catalog.FlexInt `json:"season"`
			ContainerExtension string          `json:"container_extension"`
			Info               struct {
				MovieImage string `json:"movie_image"`
			} `json:"info"`
		} `json:"episodes"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: get_series_info: %v", ErrMalformed, err)
	}
	detail := &catalog.SeriesDetail{EpisodesBySeason: make(map[int][]catalog.Episode, len(raw.Episodes))}
	for seasonStr, eps := range raw.Episodes {
		season, _ := strconv.Atoi(seasonStr)
		if season < 1 {
			season = 1
		}
		for _, ep := range eps {
			id := ep.ID.Int()
			if id == 0 {
				continue
			}
			seNum := ep.Season.Int()
			if seNum == 0 {
				seNum = season
			}
			ext := ep.ContainerExtension
			if ext == "" || len(ext) > 5 {
				ext = "mp4"
			}
			detail.EpisodesBySeason[season] = append(detail.EpisodesBySeason[season], catalog.Episode{
				ID:         id,
				SeasonNum:  seNum,
				EpisodeNum: ep.EpisodeNum.Int(),
				Title:      strings.TrimSpace(ep.Title),
				Extension:  ext,
				Icon:       ep.Info.MovieImage,
			})
		}
	}
	return detail, nil
}

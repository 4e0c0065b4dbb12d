package xtream

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
)

// Stream URL builders. Pure functions over client credentials — no I/O.
// Path layout follows the Xtream convention:
//
//	/live/{user}/{pass}/{stream_id}.{ext}
//	/movie/{user}/{pass}/{stream_id}.{ext}
//	/series/{user}/{pass}/{episode_id}.{ext}

// StreamURL builds the playback URL for an item of the given kind.
// For series the id is the episode id, not the series id.
// An empty ext falls back to a kind-appropriate default ("ts" live, "mp4" VOD).
func (c *Client) StreamURL(kind catalog.Kind, id int, ext string) string {
	if ext == "" {
		if kind == catalog.KindLive {
			ext = "ts"
		} else {
			ext = "mp4"
		}
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s.%s",
		c.base,
		streamPath(kind),
		url.PathEscape(c.user),
		url.PathEscape(c.pass),
		url.PathEscape(strconv.Itoa(id)),
		url.PathEscape(ext),
	)
}

func streamPath(kind catalog.Kind) string {
	switch kind {
	case catalog.KindLive:
		return "live"
	case catalog.KindMovie:
		return "movie"
	default:
		return "series"
	}
}

// LiveStreamURL is shorthand for StreamURL(KindLive, ...).
func (c *Client) LiveStreamURL(streamID int, ext string) string {
	return c.StreamURL(catalog.KindLive, streamID, ext)
}

// MovieStreamURL is shorthand for StreamURL(KindMovie, ...).
func (c *Client) MovieStreamURL(streamID int, ext string) string {
	return c.StreamURL(catalog.KindMovie, streamID, ext)
}

// EpisodeStreamURL is shorthand for StreamURL(KindSeries, ...).
func (c *Client) EpisodeStreamURL(episodeID int, ext string) string {
	return c.StreamURL(catalog.KindSeries, episodeID, ext)
}

// Package catalog holds the normalized content model shared by the Xtream
// client, the cache store and the refresh engine: categories and items for
// the three content kinds (live, movie, series).
package catalog

import (
	"strconv"
	"time"
)

// Kind is one of the three content kinds an Xtream provider serves.
type Kind string

const (
	KindLive   Kind = "live"
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
)

// Kinds returns all kinds in the fixed fetch order (live, movie, series).
// Bulk refresh and stats reporting rely on this order.
func Kinds() []Kind {
	return []Kind{KindLive, KindMovie, KindSeries}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindLive || k == KindMovie || k == KindSeries
}

// Label returns a user-facing name for progress messages ("Live", "Movies", "Series").
func (k Kind) Label() string {
	switch k {
	case KindLive:
		return "Live"
	case KindMovie:
		return "Movies"
	case KindSeries:
		return "Series"
	}
	return string(k)
}

// Category is a server-defined grouping of items of one kind.
// Identity is (Kind, ID). ParentID 0 means no parent (Xtream sends
// parent_id 0 or omits it for top-level categories).
type Category struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ParentID int    `json:"parent_id,omitempty"`
	Kind     Kind   `json:"kind"`
}

// CategoryKey returns the string form of a category id as used by the
// visibility filter (which also stores opaque custom-group ids).
func CategoryKey(id int) string {
	return strconv.Itoa(id)
}

// RefreshStats is the read-model produced at the end of a bulk refresh,
// computed by reading back from the cache so it is consistent with what
// callers will actually see.
type RefreshStats struct {
	LiveCategories   int       `json:"live_categories"`
	MovieCategories  int       `json:"movie_categories"`
	SeriesCategories int       `json:"series_categories"`
	Channels         int       `json:"channels"`
	Movies           int       `json:"movies"`
	Series           int       `json:"series"`
	LastUpdated      time.Time `json:"last_updated"`
}

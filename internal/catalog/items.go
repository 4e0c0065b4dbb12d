package catalog

import (
	"encoding/json"
	"fmt"
)

// MovieSchemaVersion tags cached movie buckets. Bump when Movie gains a field
// the UI depends on; cached buckets with an older tag are treated as a miss so
// the category is re-fetched instead of surfacing stale-shaped records.
// Version 2 added the container extension (playback URL construction needs it).
const MovieSchemaVersion = 2

// Item is one playable catalog entry: a live channel, a movie or a series.
// Identity is (Kind, ID), globally unique per server regardless of category.
type Item interface {
	ItemID() int
	ItemName() string
	ItemCategory() int
	ItemKind() Kind
}

// Channel is a live TV channel.
type Channel struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	CategoryID   int    `json:"category_id"`
	Num          int    `json:"num,omitempty"`
	Icon         string `json:"icon,omitempty"`
	EPGChannelID string `json:"epg_channel_id,omitempty"`
}

func (c Channel) ItemID() int       { return c.ID }
func (c Channel) ItemName() string  { return c.Name }
func (c Channel) ItemCategory() int { return c.CategoryID }
func (c Channel) ItemKind() Kind    { return KindLive }

// Movie is a single VOD entry.
type Movie struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	CategoryID int    `json:"category_id"`
	Icon       string `json:"icon,omitempty"`
	Rating     string `json:"rating,omitempty"`
	// Extension is the container extension ("mp4", "mkv", ...) used to build
	// the playback URL. Absent on records cached before MovieSchemaVersion 2.
	Extension string `json:"extension,omitempty"`
	Added     string `json:"added,omitempty"`
}

func (m Movie) ItemID() int       { return m.ID }
func (m Movie) ItemName() string  { return m.Name }
func (m Movie) ItemCategory() int { return m.CategoryID }
func (m Movie) ItemKind() Kind    { return KindMovie }

// Series is a show; episodes are fetched separately via series detail.
type Series struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	CategoryID  int    `json:"category_id"`
	Cover       string `json:"cover,omitempty"`
	Rating      string `json:"rating,omitempty"`
	Plot        string `json:"plot,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
}

func (s Series) ItemID() int       { return s.ID }
func (s Series) ItemName() string  { return s.Name }
func (s Series) ItemCategory() int { return s.CategoryID }
func (s Series) ItemKind() Kind    { return KindSeries }

// Episode is one episode inside a series detail response.
type Episode struct {
	ID         int    `json:"id"`
	SeasonNum  int    `json:"season_num"`
	EpisodeNum int    `json:"episode_num"`
	Title      string `json:"title"`
	Extension  string `json:"extension,omitempty"`
	Icon       string `json:"icon,omitempty"`
}

// SeriesDetail groups a series' episodes by season number.
type SeriesDetail struct {
	EpisodesBySeason map[int][]Episode `json:"episodes_by_season"`
}

// MarshalItems encodes items of one kind to JSON for persistence.
// All items must be of the kind's concrete type.
func MarshalItems(kind Kind, items []Item) ([]byte, error) {
	switch kind {
	case KindLive:
		out := make([]Channel, 0, len(items))
		for _, it := range items {
			c, ok := it.(Channel)
			if !ok {
				return nil, fmt.Errorf("marshal items: %T is not a live channel", it)
			}
			out = append(out, c)
		}
		return json.Marshal(out)
	case KindMovie:
		out := make([]Movie, 0, len(items))
		for _, it := range items {
			m, ok := it.(Movie)
			if !ok {
				return nil, fmt.Errorf("marshal items: %T is not a movie", it)
			}
			out = append(out, m)
		}
		return json.Marshal(out)
	case KindSeries:
		out := make([]Series, 0, len(items))
		for _, it := range items {
			s, ok := it.(Series)
			if !ok {
				return nil, fmt.Errorf("marshal items: %T is not a series", it)
			}
			out = append(out, s)
		}
		return json.Marshal(out)
	}
	return nil, fmt.Errorf("marshal items: unknown kind %q", kind)
}

// UnmarshalItems decodes a persisted item bucket back into typed items.
func UnmarshalItems(kind Kind, data []byte) ([]Item, error) {
	switch kind {
	case KindLive:
		var in []Channel
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		out := make([]Item, len(in))
		for i, c := range in {
			out[i] = c
		}
		return out, nil
	case KindMovie:
		var in []Movie
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		out := make([]Item, len(in))
		for i, m := range in {
			out[i] = m
		}
		return out, nil
	case KindSeries:
		var in []Series
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		out := make([]Item, len(in))
		for i, s := range in {
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("unmarshal items: unknown kind %q", kind)
}

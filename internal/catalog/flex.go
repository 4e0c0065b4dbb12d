package catalog

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexInt decodes Xtream's loosely typed numeric fields, which arrive as a
// JSON number or a numeric string depending on the panel version ("12" vs 12).
// Unparseable values decode to 0 rather than failing the whole payload.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			*f = 0
			return nil
		}
		s = strings.TrimSpace(str)
	}
	if s == "" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = FlexInt(n)
		return nil
	}
	// Some panels send floats ("12.0") for ids.
	if fv, err := strconv.ParseFloat(s, 64); err == nil {
		*f = FlexInt(int64(fv))
		return nil
	}
	*f = 0
	return nil
}

func (f FlexInt) Int() int { return int(f) }

// FlexString decodes a field that may arrive as a string or a number
// (ratings and epg ids commonly flip between the two).
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*f = ""
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			*f = ""
			return nil
		}
		*f = FlexString(str)
		return nil
	}
	*f = FlexString(s)
	return nil
}

func (f FlexString) String() string { return string(f) }

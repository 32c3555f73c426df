// Package timeline normalizes the heterogeneous timestamp encodings the
// monitoring server emits and buckets timestamps into the candle they belong
// to for a given timeframe.
package timeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// msThreshold disambiguates second- from millisecond-resolution numeric
// timestamps: values above it are treated as milliseconds. 2e10 seconds is
// the year 2603, far past any plausible second-resolution value.
const msThreshold = int64(2e10)

// defaultBucket is used when a timeframe token cannot be parsed.
const defaultBucket = int64(60)

// ToSeconds normalizes a raw timestamp to canonical whole seconds. It
// accepts second- and millisecond-resolution numbers (including their string
// and json.Number forms), ISO-8601 strings, and the embedded-object
// encoding {"$date": "..."}.
func ToSeconds(raw any) (int64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, fmt.Errorf("timeline: nil timestamp")
	case float64:
		return normalize(int64(v)), nil
	case int64:
		return normalize(v), nil
	case int:
		return normalize(int64(v)), nil
	case json.Number:
		return ToSeconds(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, fmt.Errorf("timeline: empty timestamp")
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return normalize(n), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return normalize(int64(f)), nil
		}
		t, err := parseISO(s)
		if err != nil {
			return 0, err
		}
		return t.Unix(), nil
	case map[string]any:
		inner, ok := v["$date"]
		if !ok {
			return 0, fmt.Errorf("timeline: object timestamp without $date")
		}
		return ToSeconds(inner)
	default:
		return 0, fmt.Errorf("timeline: unsupported timestamp type %T", raw)
	}
}

// Bucket floors a canonical second-resolution timestamp to the start of the
// candle bucket it falls into for the given timeframe. Unrecognized
// timeframe tokens fall back to a 1-minute bucket.
func Bucket(ts int64, timeframe string) int64 {
	size := BucketSize(timeframe)
	return ts - ts%size
}

// BucketSize returns the bucket width in seconds for a timeframe token of
// the form <integer><unit> with unit in {m, h, d, w}. Unrecognized tokens
// yield the 1-minute default.
func BucketSize(timeframe string) int64 {
	tf := strings.TrimSpace(strings.ToLower(timeframe))
	if len(tf) < 2 {
		return defaultBucket
	}
	n, err := strconv.ParseInt(tf[:len(tf)-1], 10, 64)
	if err != nil || n <= 0 {
		return defaultBucket
	}
	var unit int64
	switch tf[len(tf)-1] {
	case 'm':
		unit = 60
	case 'h':
		unit = 3600
	case 'd':
		unit = 86400
	case 'w':
		unit = 604800
	default:
		return defaultBucket
	}
	return n * unit
}

// normalize collapses millisecond-resolution values to whole seconds.
func normalize(n int64) int64 {
	if n > msThreshold || n < -msThreshold {
		return n / 1000
	}
	return n
}

// parseISO tries the ISO-8601 layouts observed on the wire.
func parseISO(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timeline: unparseable timestamp %q", s)
}

package archiver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
)

// sidecar is the subset of the upstream photo metadata file we read.
type sidecar struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	CreationTime   *sidecarTime    `json:"creationTime"`
	PhotoTakenTime *sidecarTime    `json:"photoTakenTime"`
	GeoData        *sidecarGeo     `json:"geoData"`
	GeoDataExif    *sidecarGeo     `json:"geoDataExif"`
	People         []sidecarPerson `json:"people"`
}

type sidecarTime struct {
	Timestamp flexString `json:"timestamp"`
	Formatted string     `json:"formatted"`
}

type sidecarGeo struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
}

type sidecarPerson struct {
	Name string `json:"name"`
}

// flexString accepts either a JSON string or a bare number. Some exports
// write timestamps unquoted.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	*s = flexString(data)
	return nil
}

// secondsThreshold separates second-based timestamps from millisecond ones.
const secondsThreshold = 10_000_000_000

func parseSidecar(r io.Reader) (*sidecar, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading sidecar: %w", err)
	}
	var s sidecar
	if err := json.Unmarshal(jsonc.ToJSON(data), &s); err != nil {
		return nil, fmt.Errorf("parsing sidecar: %w", err)
	}
	return &s, nil
}

// takenAt returns the photo's timestamp in epoch milliseconds. The "taken"
// time wins over the creation time when both are present.
func (s *sidecar) takenAt() (int64, bool) {
	t := s.PhotoTakenTime
	if t == nil {
		t = s.CreationTime
	}
	if t == nil {
		return 0, false
	}
	return normalizeTimestamp(string(t.Timestamp))
}

// normalizeTimestamp parses a numeric timestamp and scales seconds to
// milliseconds.
func normalizeTimestamp(raw string) (int64, bool) {
	ts, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	if ts != 0 && ts > -secondsThreshold && ts < secondsThreshold {
		ts *= 1000
	}
	return ts, true
}

// location returns "lat,lng". Each coordinate comes from the primary geo
// block when present there and from the EXIF block otherwise; a zero from
// the primary block is not replaced.
func (s *sidecar) location() (string, bool) {
	lat := coalesce(s.GeoData, s.GeoDataExif, func(g *sidecarGeo) *float64 { return g.Latitude })
	lng := coalesce(s.GeoData, s.GeoDataExif, func(g *sidecarGeo) *float64 { return g.Longitude })
	if !usableCoordinate(lat) || !usableCoordinate(lng) {
		return "", false
	}
	return strconv.FormatFloat(*lat, 'f', -1, 64) + "," + strconv.FormatFloat(*lng, 'f', -1, 64), true
}

func coalesce(primary, fallback *sidecarGeo, field func(*sidecarGeo) *float64) *float64 {
	if primary != nil {
		if v := field(primary); v != nil {
			return v
		}
	}
	if fallback != nil {
		return field(fallback)
	}
	return nil
}

// usableCoordinate rejects missing, non-finite and exactly-zero values; the
// upstream format writes 0.0 when no location is known.
func usableCoordinate(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) && *v != 0
}

func (s *sidecar) people() []string {
	var names []string
	for _, p := range s.People {
		if name := strings.TrimSpace(p.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

package archiver

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{"1609459200", 1609459200000, true},
		{"1609459200000", 1609459200000, true},
		{" 42 ", 42000, true},
		{"0", 0, true},
		{"-86400", -86400000, true},
		{"9999999999", 9999999999000, true},
		{"10000000000", 10000000000, true},
		{"", 0, false},
		{"yesterday", 0, false},
		{"1.5e9", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := normalizeTimestamp(tt.raw)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("normalizeTimestamp(%q) = (%d, %v), want (%d, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseSidecar(t *testing.T) {
	t.Run("taken time wins over creation time", func(t *testing.T) {
		s, err := parseSidecar(strings.NewReader(`{
			"creationTime": {"timestamp": "1000"},
			"photoTakenTime": {"timestamp": "2000", "formatted": "Jan 1, 1970"}
		}`))
		if err != nil {
			t.Fatalf("parseSidecar() error = %v", err)
		}
		if ts, ok := s.takenAt(); !ok || ts != 2000000 {
			t.Errorf("takenAt() = (%d, %v), want (2000000, true)", ts, ok)
		}
	})

	t.Run("creation time used alone", func(t *testing.T) {
		s, err := parseSidecar(strings.NewReader(`{"creationTime": {"timestamp": 1500}}`))
		if err != nil {
			t.Fatalf("parseSidecar() error = %v", err)
		}
		if ts, ok := s.takenAt(); !ok || ts != 1500000 {
			t.Errorf("takenAt() = (%d, %v), want (1500000, true)", ts, ok)
		}
	})

	t.Run("comments and trailing commas", func(t *testing.T) {
		s, err := parseSidecar(strings.NewReader(`{
			// exported by hand
			"title": "Beach",
			"people": [{"name": "Ann"},],
		}`))
		if err != nil {
			t.Fatalf("parseSidecar() error = %v", err)
		}
		if s.Title != "Beach" || !reflect.DeepEqual(s.people(), []string{"Ann"}) {
			t.Errorf("parseSidecar() = %+v", s)
		}
	})

	t.Run("not json", func(t *testing.T) {
		if _, err := parseSidecar(strings.NewReader(`<xml/>`)); err == nil {
			t.Error("parseSidecar() expected error")
		}
	})
}

func TestSidecarLocation(t *testing.T) {
	tests := []struct {
		name   string
		json   string
		want   string
		wantOK bool
	}{
		{"primary", `{"geoData":{"latitude":40,"longitude":-73}}`, "40,-73", true},
		{"fractional", `{"geoData":{"latitude":48.8584,"longitude":2.2945}}`, "48.8584,2.2945", true},
		{"zero sentinel", `{"geoData":{"latitude":0,"longitude":0}}`, "", false},
		{"one zero coordinate", `{"geoData":{"latitude":51.5,"longitude":0}}`, "", false},
		{"zero primary wins over exif", `{"geoData":{"latitude":0,"longitude":0},"geoDataExif":{"latitude":1.5,"longitude":2.5}}`, "", false},
		{"exif when primary absent", `{"geoDataExif":{"latitude":1.5,"longitude":2.5}}`, "1.5,2.5", true},
		{"per coordinate fallback", `{"geoData":{"latitude":1.5},"geoDataExif":{"latitude":9,"longitude":2.5}}`, "1.5,2.5", true},
		{"primary preferred", `{"geoData":{"latitude":1,"longitude":2},"geoDataExif":{"latitude":3,"longitude":4}}`, "1,2", true},
		{"missing longitude", `{"geoData":{"latitude":1}}`, "", false},
		{"absent", `{}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := parseSidecar(strings.NewReader(tt.json))
			if err != nil {
				t.Fatalf("parseSidecar() error = %v", err)
			}
			got, ok := s.location()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("location() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSidecarPeople(t *testing.T) {
	s, err := parseSidecar(strings.NewReader(`{"people":[{"name":" Ann "},{"name":""},{"name":"   "},{"name":"Bo"}]}`))
	if err != nil {
		t.Fatalf("parseSidecar() error = %v", err)
	}
	if got := s.people(); !reflect.DeepEqual(got, []string{"Ann", "Bo"}) {
		t.Errorf("people() = %v, want [Ann Bo]", got)
	}

	empty, _ := parseSidecar(strings.NewReader(`{"people":[{"name":" "}]}`))
	if got := empty.people(); got != nil {
		t.Errorf("people() = %v, want nil", got)
	}
}

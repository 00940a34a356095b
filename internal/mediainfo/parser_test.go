package mediainfo

import "testing"

const singleObjectJSON = `{
  "media": {
    "@ref": "/library/movie.mkv",
    "track": [
      {"@type": "General", "FileSize": "734003200", "Duration": "5400.250", "OverallBitRate": "1087000"},
      {"@type": "Video", "Format": "HEVC", "Width": "1920", "Height": "1080", "HDR_Format": "SMPTE ST 2086"},
      {"@type": "Audio", "Format": "AC-3", "Channels": "6"},
      {"@type": "Audio", "Format": "AAC", "Channels": "2"}
    ]
  }
}`

const arrayJSON = `[
  {"media": {"@ref": "/library/a.mkv", "track": [
    {"@type": "General", "FileSize": "1000", "Duration": "60.0"},
    {"@type": "Video", "Format": "AV1", "Width": "1280", "Height": "720"},
    {"@type": "Audio", "Format": "Opus", "Channels": "2"}
  ]}},
  {"media": {"@ref": "/library/b.mkv", "track": [
    {"@type": "General", "FileSize": "2000", "Duration": "120.0"},
    {"@type": "Video", "Format": "AVC", "Width": "1920", "Height": "1080"}
  ]}}
]`

const flatJSON = `{"@ref": "/library/c.mp4", "Format": "MPEG-4", "FileSize": "4096", "Duration": "30.5"}`

func TestParseOutputSingleObject(t *testing.T) {
	got, err := ParseOutput([]byte(singleObjectJSON), []string{"/library/movie.mkv"})
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}
	m := got["/library/movie.mkv"]
	if m == nil {
		t.Fatal("missing entry for /library/movie.mkv")
	}
	if m.Size != 734003200 || m.Duration != 5400.25 || m.Bitrate != 1087000 {
		t.Errorf("general fields = %d/%v/%d", m.Size, m.Duration, m.Bitrate)
	}
	if len(m.VideoCodecs) != 1 || m.VideoCodecs[0] != "HEVC" {
		t.Errorf("VideoCodecs = %v", m.VideoCodecs)
	}
	if len(m.AudioCodecs) != 2 || m.MaxAudioChannels != 6 {
		t.Errorf("audio = %v, channels %d", m.AudioCodecs, m.MaxAudioChannels)
	}
	if !m.HDR {
		t.Error("HDR_Format present, HDR = false")
	}
	if m.Width != 1920 || m.Height != 1080 {
		t.Errorf("resolution = %dx%d", m.Width, m.Height)
	}
}

func TestParseOutputArray(t *testing.T) {
	paths := []string{"/library/a.mkv", "/library/b.mkv"}
	got, err := ParseOutput([]byte(arrayJSON), paths)
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}
	// Every input path maps to exactly one outcome.
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	for _, p := range paths {
		if got[p] == nil {
			t.Errorf("missing entry for %s", p)
		}
	}
	if !got["/library/a.mkv"].Valid() {
		t.Error("a.mkv should be valid")
	}
}

func TestParseOutputFlatShape(t *testing.T) {
	got, err := ParseOutput([]byte(flatJSON), []string{"/library/c.mp4"})
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}
	m := got["/library/c.mp4"]
	if m == nil {
		t.Fatal("missing entry")
	}
	if m.Size != 4096 || m.Duration != 30.5 {
		t.Errorf("flat fields = %d/%v", m.Size, m.Duration)
	}
	// Flat shape carries no track list, so it cannot validate.
	if m.Valid() {
		t.Error("flat shape without video track must not be Valid")
	}
}

func TestParseOutputKeyFallsBackToCompleteName(t *testing.T) {
	data := `{"media": {"track": [
	  {"@type": "General", "CompleteName": "/library/d.mkv", "Duration": "10"},
	  {"@type": "Video", "Format": "AV1"}
	]}}`
	got, err := ParseOutput([]byte(data), []string{"/library/d.mkv"})
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}
	if got["/library/d.mkv"] == nil {
		t.Fatal("CompleteName was not used as the mapping key")
	}
}

func TestParseOutputSinglePathPositionalKey(t *testing.T) {
	data := `{"Format": "Matroska", "FileSize": "10", "Duration": "5"}`
	got, err := ParseOutput([]byte(data), []string{"/library/e.mkv"})
	if err != nil {
		t.Fatalf("ParseOutput() error = %v", err)
	}
	if got["/library/e.mkv"] == nil {
		t.Fatal("single requested path was not keyed positionally")
	}
}

func TestParseOutputErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"not json", "mediainfo: command not found"},
		{"multi-file without refs", `[{"media": {"track": []}}, {"media": {"track": []}}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseOutput([]byte(tt.data), []string{"/x", "/y"}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

package mediainfo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseOutput converts raw mediainfo JSON into a path -> Metadata map.
// It accepts all three output shapes (single object, array, minimal
// flat object) and keys each entry by the tool's "@ref" field, falling
// back to the General track's CompleteName. requested is the path list
// passed to the tool; when the output carries no usable key and exactly
// one path was requested, the result is keyed positionally.
//
// Exported separately from invocation so tests run without the binary,
// as the probe parsers in this codebase's lineage do.
func ParseOutput(data []byte, requested []string) (map[string]*Metadata, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty mediainfo output")
	}

	var files []wireFile
	if data[0] == '[' {
		if err := json.Unmarshal(data, &files); err != nil {
			return nil, fmt.Errorf("parse mediainfo array: %w", err)
		}
	} else {
		var one wireFile
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("parse mediainfo object: %w", err)
		}
		files = []wireFile{one}
	}

	out := make(map[string]*Metadata, len(files))
	for i, f := range files {
		meta, key := buildMetadata(&f)
		if key == "" {
			// Minimal shapes may omit the reference entirely; a
			// single-path invocation still maps unambiguously.
			if len(requested) == 1 && len(files) == 1 {
				key = requested[0]
			} else {
				return nil, fmt.Errorf("mediainfo output[%d] has no path reference", i)
			}
		}
		meta.Path = key
		out[key] = meta
	}
	return out, nil
}

func buildMetadata(f *wireFile) (*Metadata, string) {
	if f.Media == nil {
		// Flat single-file shape: container-level fields only.
		return &Metadata{
			Size:     parseInt64(f.FileSize),
			Duration: parseFloat(f.Duration),
		}, f.Ref
	}

	meta := &Metadata{}
	key := f.Media.Ref

	for i := range f.Media.Tracks {
		t := &f.Media.Tracks[i]
		switch strings.ToLower(t.Type) {
		case "general":
			meta.Size = parseInt64(t.FileSize)
			meta.Duration = parseFloat(t.Duration)
			meta.Bitrate = parseInt64(t.OverallBitRate)
			if key == "" {
				key = t.CompleteName
			}
		case "video":
			meta.VideoCodecs = append(meta.VideoCodecs, t.Format)
			if meta.Width == 0 {
				meta.Width = int(parseInt64(t.Width))
				meta.Height = int(parseInt64(t.Height))
			}
			if t.HDRFormat != "" || strings.Contains(t.TransferCharact, "PQ") || strings.Contains(t.TransferCharact, "HLG") {
				meta.HDR = true
			}
			if meta.Bitrate == 0 {
				meta.Bitrate = parseInt64(t.BitRate)
			}
		case "audio":
			meta.AudioCodecs = append(meta.AudioCodecs, t.Format)
			if ch := int(parseInt64(t.Channels)); ch > meta.MaxAudioChannels {
				meta.MaxAudioChannels = ch
			}
		}
	}
	return meta, key
}

// Valid reports whether the metadata has the shape the pipelines need:
// a duration and at least one video stream.
func (m *Metadata) Valid() bool {
	return m != nil && m.Duration > 0 && len(m.VideoCodecs) > 0
}

// mediainfo emits numbers as strings; missing fields parse to zero.

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

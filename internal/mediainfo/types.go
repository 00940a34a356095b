// Package mediainfo resolves technical metadata for media files by
// invoking the mediainfo CLI over chunks of paths, normalizing its
// heterogeneous JSON output shapes into one path -> metadata mapping.
package mediainfo

// Metadata is the parsed technical metadata for one file.
type Metadata struct {
	Path             string
	Size             int64
	Duration         float64
	Bitrate          int64
	Width            int
	Height           int
	VideoCodecs      []string
	AudioCodecs      []string
	MaxAudioChannels int
	HDR              bool
}

// --- mediainfo JSON wire types ---
//
// The tool emits one of three shapes:
//  1. a single object: {"media": {"@ref": "...", "track": [...]}}
//  2. an array of such objects (multi-path invocation)
//  3. a minimal flat object for one file: {"@ref": "...", "Format": ...}

type wireFile struct {
	Media *wireMedia `json:"media"`

	// Flat-shape fields, present only when Media is nil.
	Ref      string `json:"@ref"`
	Format   string `json:"Format"`
	FileSize string `json:"FileSize"`
	Duration string `json:"Duration"`
}

type wireMedia struct {
	Ref    string      `json:"@ref"`
	Tracks []wireTrack `json:"track"`
}

type wireTrack struct {
	Type            string `json:"@type"`
	CompleteName    string `json:"CompleteName"`
	Format          string `json:"Format"`
	FileSize        string `json:"FileSize"`
	Duration        string `json:"Duration"`
	OverallBitRate  string `json:"OverallBitRate"`
	BitRate         string `json:"BitRate"`
	Width           string `json:"Width"`
	Height          string `json:"Height"`
	Channels        string `json:"Channels"`
	HDRFormat       string `json:"HDR_Format"`
	TransferCharact string `json:"transfer_characteristics"`
}

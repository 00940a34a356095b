package models

import (
	"strings"
	"time"
)

// Video is the persisted record for one media file, keyed by path.
// It is created on first sight of a path and updated on every later
// sighting (upsert by path), and advances through the pipeline states
// below for the life of the library.
type Video struct {
	ID         int64  `json:"id"`
	Path       string `json:"path"`
	LibraryID  string `json:"library_id"`
	SourceType string `json:"source_type"`
	State      string `json:"state"`

	Size             int64    `json:"size"`
	Duration         float64  `json:"duration"`
	Bitrate          int64    `json:"bitrate"`
	Width            int      `json:"width"`
	Height           int      `json:"height"`
	VideoCodecs      []string `json:"video_codecs"`
	AudioCodecs      []string `json:"audio_codecs"`
	MaxAudioChannels int      `json:"max_audio_channels"`
	HDR              bool     `json:"hdr"`

	// TargetCRF is the quality setting chosen by the search stage;
	// zero until a search completes.
	TargetCRF int `json:"target_crf"`

	// Force makes every stage skip its already-at-target shortcut.
	// Set by a forced retry, cleared when the encode stage finishes.
	Force bool `json:"force"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkItem is the ephemeral unit handed from a dispatcher to a batch.
// It is constructed from a store query and consumed exactly once.
type WorkItem struct {
	Path       string
	LibraryID  string
	SourceType string
	Force      bool
}

// Video pipeline states. Each pipeline may only advance a record along
// its own legal transition; "encoded" and "failed" are re-enterable via
// the retry surface, never terminal for the process.
const (
	StateNeedsAnalysis = "needs_analysis"
	StateAnalyzed      = "analyzed"
	StateCRFSearched   = "crf_searched"
	StateEncoded       = "encoded"
	StateFailed        = "failed"
)

// Source types.
const (
	SourceMovies = "movies"
	SourceShows  = "shows"
	SourceManual = "manual"
)

// Target codecs. A record whose primary streams already carry both
// targets skips the remaining stages.
const (
	TargetVideoCodec = "av1"
	TargetAudioCodec = "opus"
)

// MeetsVideoTarget reports whether the primary video codec is already
// the encode target.
func (v *Video) MeetsVideoTarget() bool {
	return len(v.VideoCodecs) > 0 && codecMatches(v.VideoCodecs[0], TargetVideoCodec)
}

// MeetsAudioTarget reports whether the primary audio codec is already
// the encode target. A file without audio trivially satisfies it.
func (v *Video) MeetsAudioTarget() bool {
	if len(v.AudioCodecs) == 0 {
		return true
	}
	return codecMatches(v.AudioCodecs[0], TargetAudioCodec)
}

// mediainfo reports format names like "AV1" or "V_MPEGH/ISO/AV1C";
// match on substring, case-insensitively.
func codecMatches(codec, target string) bool {
	return strings.Contains(strings.ToLower(codec), target)
}

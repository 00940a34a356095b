package pipeline

import (
	"context"
	"time"

	"rekoda/internal/crfsearch"
	"rekoda/internal/encode"
	"rekoda/internal/failures"
	"rekoda/internal/mediainfo"
	"rekoda/internal/models"
)

// AnalysisStage extracts technical metadata for freshly discovered
// files. The only stage that drives the batched external tool; batches
// are large and flushed fast because one invocation amortizes over the
// whole chunk.
func AnalysisStage() StageConfig {
	return StageConfig{
		Name:            models.StageAnalysis,
		EntryState:      models.StateNeedsAnalysis,
		NextState:       models.StateAnalyzed,
		BatchSize:       100,
		FlushTimeout:    500 * time.Millisecond,
		ResolveMetadata: true,
		Prepare: func(_ context.Context, item models.WorkItem, meta *mediainfo.Metadata) (PrepResult, error) {
			return PrepResult{Video: &models.Video{
				Path:             item.Path,
				LibraryID:        item.LibraryID,
				SourceType:       item.SourceType,
				Size:             meta.Size,
				Duration:         meta.Duration,
				Bitrate:          meta.Bitrate,
				Width:            meta.Width,
				Height:           meta.Height,
				VideoCodecs:      meta.VideoCodecs,
				AudioCodecs:      meta.AudioCodecs,
				MaxAudioChannels: meta.MaxAudioChannels,
				HDR:              meta.HDR,
				Force:            item.Force,
			}}, nil
		},
		Satisfied: func(v *models.Video, item models.WorkItem) (bool, string) {
			if item.Force {
				return false, ""
			}
			if v.MeetsVideoTarget() && v.MeetsAudioTarget() {
				return true, "already at target video and audio codecs"
			}
			return false, ""
		},
	}
}

// CRFSearchStage finds each analyzed file's quality/size tradeoff via
// the search collaborator. Searches are long, so batches are single
// items; the pipeline shape stays identical.
func CRFSearchStage(store Store, searcher crfsearch.Searcher) StageConfig {
	return StageConfig{
		Name:         models.StageCRFSearch,
		EntryState:   models.StateAnalyzed,
		NextState:    models.StateCRFSearched,
		BatchSize:    1,
		FlushTimeout: 2 * time.Second,
		Prepare: func(ctx context.Context, item models.WorkItem, _ *mediainfo.Metadata) (PrepResult, error) {
			v, err := store.GetByPath(ctx, item.Path)
			if err != nil {
				return PrepResult{}, err
			}
			if v == nil {
				return PrepResult{}, failures.Validation("record_missing",
					"no record for %s at search time", item.Path)
			}
			if v.MeetsVideoTarget() && !item.Force {
				return PrepResult{Video: v}, nil
			}
			res, err := searcher.Search(ctx, v)
			if err != nil {
				return PrepResult{}, failures.ProcessFailure("search_failed", "%v", err)
			}
			v.TargetCRF = res.CRF
			return PrepResult{Video: v}, nil
		},
		Satisfied: func(v *models.Video, item models.WorkItem) (bool, string) {
			if !item.Force && v.MeetsVideoTarget() {
				return true, "video codec already at target, search unnecessary"
			}
			return false, ""
		},
	}
}

// EncodingStage re-encodes searched files via the encode collaborator.
func EncodingStage(store Store, encoder encode.Encoder) StageConfig {
	return StageConfig{
		Name:         models.StageEncoding,
		EntryState:   models.StateCRFSearched,
		NextState:    models.StateEncoded,
		BatchSize:    1,
		FlushTimeout: 2 * time.Second,
		Prepare: func(ctx context.Context, item models.WorkItem, _ *mediainfo.Metadata) (PrepResult, error) {
			v, err := store.GetByPath(ctx, item.Path)
			if err != nil {
				return PrepResult{}, err
			}
			if v == nil {
				return PrepResult{}, failures.Validation("record_missing",
					"no record for %s at encode time", item.Path)
			}
			if v.MeetsVideoTarget() && v.MeetsAudioTarget() && !item.Force {
				return PrepResult{Video: v}, nil
			}
			if _, err := encoder.Encode(ctx, v, v.TargetCRF); err != nil {
				return PrepResult{}, failures.ProcessFailure("encode_failed", "%v", err)
			}
			// A forced pass is consumed once the encode lands.
			v.Force = false
			return PrepResult{Video: v}, nil
		},
		Satisfied: func(v *models.Video, item models.WorkItem) (bool, string) {
			if !item.Force && v.MeetsVideoTarget() && v.MeetsAudioTarget() {
				return true, "already at target codecs, encode unnecessary"
			}
			return false, ""
		},
	}
}

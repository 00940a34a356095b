// Package crfsearch defines the quality-search collaborator contract.
// The search algorithm itself (VMAF targets, CRF stepping) lives in
// the external tool; the pipeline only needs a result per file.
package crfsearch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"rekoda/internal/models"
)

// Result is one chosen quality/size tradeoff.
type Result struct {
	CRF          int
	PredictedPct int // predicted output size as a percent of input
}

// Searcher finds the optimal quality setting for a video.
type Searcher interface {
	Search(ctx context.Context, v *models.Video) (*Result, error)
}

// CLISearcher shells out to ab-av1's crf-search subcommand.
type CLISearcher struct {
	Binary     string
	TargetVMAF int
}

// NewCLISearcher returns a searcher using the given binary (default
// "ab-av1") and VMAF target (default 95).
func NewCLISearcher(binary string, targetVMAF int) *CLISearcher {
	if binary == "" {
		binary = "ab-av1"
	}
	if targetVMAF <= 0 {
		targetVMAF = 95
	}
	return &CLISearcher{Binary: binary, TargetVMAF: targetVMAF}
}

// Search runs one crf-search invocation and parses the chosen CRF and
// predicted size from its final summary line.
func (s *CLISearcher) Search(ctx context.Context, v *models.Video) (*Result, error) {
	args := []string{
		"crf-search",
		"-i", v.Path,
		"--min-vmaf", strconv.Itoa(s.TargetVMAF),
	}
	cmd := exec.CommandContext(ctx, s.Binary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s crf-search %s: %w: %s",
			s.Binary, v.Path, err, strings.TrimSpace(stderr.String()))
	}
	return parseSearchOutput(string(out))
}

// parseSearchOutput extracts "crf N" and "(M%)" from the tool's
// summary, e.g. "crf 28 VMAF 95.2 predicted video stream size 1.2 GiB (34%)".
func parseSearchOutput(out string) (*Result, error) {
	res := &Result{CRF: -1}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		for i, f := range fields {
			if f == "crf" && i+1 < len(fields) {
				if n, err := strconv.Atoi(fields[i+1]); err == nil {
					res.CRF = n
				}
			}
			if strings.HasPrefix(f, "(") && strings.HasSuffix(f, "%)") {
				if n, err := strconv.Atoi(strings.Trim(f, "(%)")); err == nil {
					res.PredictedPct = n
				}
			}
		}
	}
	if res.CRF < 0 {
		return nil, fmt.Errorf("crf-search output carried no crf value")
	}
	return res, nil
}

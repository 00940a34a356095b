// Package encode defines the encoding collaborator contract. Encoding
// parameter heuristics (pixel format, HDR mapping, audio bitrates) are
// the external tool's concern; the pipeline hands it a file and the
// quality setting the search stage chose.
package encode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"rekoda/internal/models"
)

// Encoder re-encodes a video and returns the output path.
type Encoder interface {
	Encode(ctx context.Context, v *models.Video, crf int) (string, error)
}

// CLIEncoder shells out to ab-av1's encode subcommand.
type CLIEncoder struct {
	Binary    string
	OutputDir string
}

// NewCLIEncoder returns an encoder using the given binary (default
// "ab-av1") writing into outputDir (default: alongside the source).
func NewCLIEncoder(binary, outputDir string) *CLIEncoder {
	if binary == "" {
		binary = "ab-av1"
	}
	return &CLIEncoder{Binary: binary, OutputDir: outputDir}
}

// Encode runs one encode invocation at the given CRF.
func (e *CLIEncoder) Encode(ctx context.Context, v *models.Video, crf int) (string, error) {
	out := e.outputPath(v.Path)
	args := []string{
		"encode",
		"-i", v.Path,
		"--crf", strconv.Itoa(crf),
		"-o", out,
	}
	cmd := exec.CommandContext(ctx, e.Binary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s encode %s: %w: %s",
			e.Binary, v.Path, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func (e *CLIEncoder) outputPath(input string) string {
	dir := e.OutputDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, base+".av1.mkv")
}

package crfsearch

import "testing"

func TestParseSearchOutput(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		wantCRF int
		wantPct int
		wantErr bool
	}{
		{
			name:    "summary line",
			out:     "crf 28 VMAF 95.2 predicted video stream size 1.2 GiB (34%)\n",
			wantCRF: 28,
			wantPct: 34,
		},
		{
			name:    "multi-line progress then summary",
			out:     "- crf 35 VMAF 91.1 (22%)\ncrf 24 VMAF 95.0 predicted size 2.0 GiB (51%)\n",
			wantCRF: 24,
			wantPct: 51,
		},
		{
			name:    "no crf anywhere",
			out:     "Error: Failed to find a suitable crf\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSearchOutput(tt.out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSearchOutput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got.CRF != tt.wantCRF || got.PredictedPct != tt.wantPct {
				t.Errorf("got crf=%d pct=%d, want crf=%d pct=%d",
					got.CRF, got.PredictedPct, tt.wantCRF, tt.wantPct)
			}
		})
	}
}

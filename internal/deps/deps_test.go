package deps

import (
	"testing"

	"github.com/mesler1/dadcam/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	present := testsupport.WriteExecutable(t, t.TempDir(), "udisksctl", "exit 0\n")

	tests := []struct {
		req       Requirement
		available bool
		path      string
		detail    string
	}{
		{Requirement{Name: "udisksctl", Command: present}, true, present, ""},
		{Requirement{Name: "FFmpeg", Command: "clearly-not-ffmpeg"}, false, "", `binary "clearly-not-ffmpeg" not found`},
		{Requirement{Name: "Detector", Command: "  ", Optional: true}, false, "", "command not configured"},
	}
	reqs := make([]Requirement, len(tests))
	for i, tt := range tests {
		reqs[i] = tt.req
	}

	results := CheckBinaries(reqs)
	if len(results) != len(tests) {
		t.Fatalf("expected %d results, got %d", len(tests), len(results))
	}
	for i, tt := range tests {
		got := results[i]
		if got.Name != tt.req.Name || got.Available != tt.available || got.Path != tt.path || got.Detail != tt.detail {
			t.Fatalf("%s: got %+v", tt.req.Name, got)
		}
	}
}

func TestMissingRequiredSkipsOptional(t *testing.T) {
	statuses := []Status{
		{Requirement: Requirement{Name: "FFprobe"}, Available: true},
		{Requirement: Requirement{Name: "blkid", Optional: true}},
		{Requirement: Requirement{Name: "FFmpeg"}},
	}
	missing := MissingRequired(statuses)
	if len(missing) != 1 || missing[0].Name != "FFmpeg" {
		t.Fatalf("unexpected missing list %+v", missing)
	}
}

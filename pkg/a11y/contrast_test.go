package a11y

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/glazeui/glaze/pkg/rendertree"
	"github.com/glazeui/glaze/pkg/rendertree/memtree"
)

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    RGB
		wantErr bool
	}{
		{"#ffffff", RGB{255, 255, 255}, false},
		{"#000000", RGB{0, 0, 0}, false},
		{"#fff", RGB{255, 255, 255}, false},
		{"#1a2b3c", RGB{26, 43, 60}, false},
		{"ffffff", RGB{}, true},
		{"#ffff", RGB{}, true},
		{"#gggggg", RGB{}, true},
		{"", RGB{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHexColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseHexColor(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestContrastRatio(t *testing.T) {
	white := RGB{255, 255, 255}
	black := RGB{0, 0, 0}

	// Black on white is the maximum ratio, 21:1.
	if got := ContrastRatio(black, white); math.Abs(got-21) > 0.01 {
		t.Fatalf("black/white ratio = %f, want 21", got)
	}
	// Order must not matter.
	if ContrastRatio(black, white) != ContrastRatio(white, black) {
		t.Fatal("ratio must be symmetric")
	}
	// Identical colors have ratio 1.
	if got := ContrastRatio(white, white); math.Abs(got-1) > 0.001 {
		t.Fatalf("white/white ratio = %f, want 1", got)
	}
}

func contrastTree() *memtree.Tree {
	tree := memtree.New()
	tree.Add(memtree.NodeSpec{
		ID:   "good",
		Tags: []string{"interactive"},
		Properties: rendertree.Properties{
			"color":            "#000000",
			"background-color": "#ffffff",
		},
	})
	tree.Add(memtree.NodeSpec{
		ID:   "warning",
		Tags: []string{"interactive"},
		Properties: rendertree.Properties{
			// Mid greys: ratio between the fail tier and the minimum.
			"color":            "#777777",
			"background-color": "#bbbbbb",
		},
	})
	tree.Add(memtree.NodeSpec{
		ID:   "critical",
		Tags: []string{"interactive"},
		Properties: rendertree.Properties{
			"color":            "#888888",
			"background-color": "#999999",
		},
	})
	tree.Add(memtree.NodeSpec{
		ID:   "untagged",
		Tags: []string{"static"},
		Properties: rendertree.Properties{
			"color":            "#888888",
			"background-color": "#888888",
		},
	})
	return tree
}

func TestContrastScanFindsViolations(t *testing.T) {
	tree := contrastTree()
	output := &BufferOutput{}
	announcer := NewAnnouncer(output, VerbosityStandard, zerolog.Nop(), nil, nil)

	scan := StartContrastScan(context.Background(), ScannerConfig{Interval: 10 * time.Millisecond}, tree, announcer.Announce, zerolog.Nop())
	time.Sleep(50 * time.Millisecond)
	violations := scan.Stop()

	bySeverity := map[rendertree.NodeID]ViolationSeverity{}
	for _, v := range violations {
		bySeverity[v.Node] = v.Severity
	}

	if _, ok := bySeverity["good"]; ok {
		t.Fatal("high-contrast node reported as violation")
	}
	if _, ok := bySeverity["untagged"]; ok {
		t.Fatal("untagged node must not be sampled")
	}
	if got := bySeverity["warning"]; got != SeverityWarning {
		t.Fatalf("warning node severity = %q, want warning", got)
	}
	if got := bySeverity["critical"]; got != SeverityCritical {
		t.Fatalf("critical node severity = %q, want critical", got)
	}

	// Critical violations announce assertively, once per node. The
	// announcement is fire-and-forget, so allow it a beat to land.
	deadline := time.Now().Add(time.Second)
	for {
		entries := output.Entries()
		if len(entries) > 0 {
			if len(entries) != 1 {
				t.Fatalf("announced %d times, want 1", len(entries))
			}
			if entries[0].Priority != PriorityAssertive {
				t.Fatalf("announcement priority = %q, want assertive", entries[0].Priority)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("critical violation never announced")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestContrastScanStopSamplesEndpointState(t *testing.T) {
	tree := memtree.New()
	tree.Add(memtree.NodeSpec{
		ID:   "button",
		Tags: []string{"interactive"},
		Properties: rendertree.Properties{
			"color":            "#000000",
			"background-color": "#ffffff",
		},
	})

	// With an interval far beyond the scan's lifetime, only the initial
	// sample runs before Stop. The endpoint colors land after it.
	scan := StartContrastScan(context.Background(), ScannerConfig{Interval: time.Hour}, tree, nil, zerolog.Nop())
	tree.ApplyProperties("button", rendertree.Properties{
		"color":            "#888888",
		"background-color": "#999999",
	})

	violations := scan.Stop()
	if len(violations) != 1 || violations[0].Node != "button" {
		t.Fatalf("violations = %v, want the endpoint state of button", violations)
	}
}

func TestContrastScanStopIsPrompt(t *testing.T) {
	tree := contrastTree()
	scan := StartContrastScan(context.Background(), ScannerConfig{Interval: time.Hour}, tree, nil, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		scan.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on the sampling interval")
	}
}

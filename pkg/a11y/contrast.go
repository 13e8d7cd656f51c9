package a11y

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/glazeui/glaze/pkg/rendertree"
)

// DefaultContrastInterval is how often the scanner samples during a
// transition. Fast enough to catch interpolated mid-transition colors.
const DefaultContrastInterval = 50 * time.Millisecond

// DefaultMinContrastRatio is the floor below which a pairing is recorded as
// a violation.
const DefaultMinContrastRatio = 3.0

// DefaultFailContrastRatio is the tier below which a violation additionally
// triggers an immediate assertive announcement.
const DefaultFailContrastRatio = 2.0

// Property keys the scanner reads from sampled nodes.
const (
	propForeground = "color"
	propBackground = "background-color"
)

// ViolationSeverity grades a contrast violation.
type ViolationSeverity string

const (
	// SeverityWarning marks a ratio below the minimum tier.
	SeverityWarning ViolationSeverity = "warning"

	// SeverityCritical marks a ratio below the fail tier.
	SeverityCritical ViolationSeverity = "critical"
)

// Violation is one contrast violation observed during a transition.
type Violation struct {
	// Node is the offending node.
	Node rendertree.NodeID `json:"node"`

	// Ratio is the measured contrast ratio.
	Ratio float64 `json:"ratio"`

	// Severity grades the violation.
	Severity ViolationSeverity `json:"severity"`
}

// String renders the violation for reports.
func (v Violation) String() string {
	return fmt.Sprintf("%s: contrast %.2f:1 (%s)", v.Node, v.Ratio, v.Severity)
}

// ScannerConfig configures a contrast scan.
type ScannerConfig struct {
	// Interval is the sampling interval. <=0 selects the default.
	Interval time.Duration

	// MinRatio is the violation floor. <=0 selects the default.
	MinRatio float64

	// FailRatio is the assertive-announcement tier. <=0 selects the default.
	FailRatio float64

	// Categories are the tags of interactive-element categories to sample.
	Categories []string
}

func (c *ScannerConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultContrastInterval
	}
	if c.MinRatio <= 0 {
		c.MinRatio = DefaultMinContrastRatio
	}
	if c.FailRatio <= 0 {
		c.FailRatio = DefaultFailContrastRatio
	}
	if len(c.Categories) == 0 {
		c.Categories = []string{"interactive"}
	}
}

// ContrastScan samples the tree's interactive categories at a fixed interval
// for the duration of one transition window, recording each node's worst
// violation. Critical violations trigger an immediate assertive announcement
// off the critical path.
type ContrastScan struct {
	cfg      ScannerConfig
	tree     rendertree.Tree
	announce func(message string, priority Priority)
	logger   zerolog.Logger

	mu         sync.Mutex
	violations map[rendertree.NodeID]Violation
	announced  map[rendertree.NodeID]bool

	cancel context.CancelFunc
	done   chan struct{}
}

// StartContrastScan begins sampling. announce may be nil.
func StartContrastScan(ctx context.Context, cfg ScannerConfig, tree rendertree.Tree, announce func(string, Priority), logger zerolog.Logger) *ContrastScan {
	cfg.applyDefaults()
	scanCtx, cancel := context.WithCancel(ctx)
	s := &ContrastScan{
		cfg:        cfg,
		tree:       tree,
		announce:   announce,
		logger:     logger.With().Str("component", "contrast-scan").Logger(),
		violations: make(map[rendertree.NodeID]Violation),
		announced:  make(map[rendertree.NodeID]bool),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go s.run(scanCtx)
	return s
}

func (s *ContrastScan) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// Sample once immediately so even instant transitions get one pass.
	s.sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *ContrastScan) sample() {
	for _, tag := range s.cfg.Categories {
		for _, id := range s.tree.NodesByTag(tag) {
			props, ok := s.tree.ReadProperties(id)
			if !ok {
				continue
			}
			fg, err1 := ParseHexColor(props[propForeground])
			bg, err2 := ParseHexColor(props[propBackground])
			if err1 != nil || err2 != nil {
				continue
			}
			ratio := ContrastRatio(fg, bg)
			if ratio >= s.cfg.MinRatio {
				continue
			}
			s.record(id, ratio)
		}
	}
}

func (s *ContrastScan) record(id rendertree.NodeID, ratio float64) {
	severity := SeverityWarning
	if ratio < s.cfg.FailRatio {
		severity = SeverityCritical
	}
	v := Violation{Node: id, Ratio: ratio, Severity: severity}

	s.mu.Lock()
	prev, seen := s.violations[id]
	if !seen || ratio < prev.Ratio {
		s.violations[id] = v
	}
	shouldAnnounce := severity == SeverityCritical && !s.announced[id]
	if shouldAnnounce {
		s.announced[id] = true
	}
	s.mu.Unlock()

	s.logger.Debug().Str("node", string(id)).Float64("ratio", ratio).Str("severity", string(severity)).Msg("contrast violation")

	// Fire-and-forget: the announcement is not part of the critical path.
	if shouldAnnounce && s.announce != nil {
		go s.announce(fmt.Sprintf("Low contrast detected on %s", id), PriorityAssertive)
	}
}

// Stop ends the scan and returns each node's worst recorded violation. A
// final sample runs before collection so the endpoint state is always
// covered, even when the transition finishes inside one interval.
func (s *ContrastScan) Stop() []Violation {
	s.cancel()
	<-s.done
	s.sample()

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Violation, 0, len(s.violations))
	for _, v := range s.violations {
		out = append(out, v)
	}
	return out
}

// RGB is a color with components in [0,255].
type RGB struct {
	R, G, B float64
}

// ParseHexColor parses "#rgb" and "#rrggbb" colors.
func ParseHexColor(value string) (RGB, error) {
	v := strings.TrimSpace(value)
	if !strings.HasPrefix(v, "#") {
		return RGB{}, fmt.Errorf("not a hex color: %q", value)
	}
	v = v[1:]

	switch len(v) {
	case 3:
		v = string([]byte{v[0], v[0], v[1], v[1], v[2], v[2]})
	case 6:
	default:
		return RGB{}, fmt.Errorf("invalid hex color length: %q", value)
	}

	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid hex color: %q", value)
	}
	return RGB{
		R: float64((n >> 16) & 0xff),
		G: float64((n >> 8) & 0xff),
		B: float64(n & 0xff),
	}, nil
}

// RelativeLuminance computes WCAG relative luminance of a color.
func RelativeLuminance(c RGB) float64 {
	lin := func(channel float64) float64 {
		s := channel / 255
		if s <= 0.03928 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.R) + 0.7152*lin(c.G) + 0.0722*lin(c.B)
}

// ContrastRatio computes the WCAG contrast ratio between two colors. The
// result is in [1, 21] regardless of argument order.
func ContrastRatio(a, b RGB) float64 {
	la := RelativeLuminance(a)
	lb := RelativeLuminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

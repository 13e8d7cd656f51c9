package a11y

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/glazeui/glaze/pkg/telemetry"
	"github.com/glazeui/glaze/pkg/theme"
)

// Priority is the live-region politeness level of an announcement.
type Priority string

const (
	// PriorityPolite queues the announcement behind current speech.
	PriorityPolite Priority = "polite"

	// PriorityAssertive interrupts current speech.
	PriorityAssertive Priority = "assertive"
)

// Verbosity controls how much detail announcements carry.
type Verbosity string

const (
	// VerbosityMinimal announces only that something changed.
	VerbosityMinimal Verbosity = "minimal"

	// VerbosityStandard names the theme.
	VerbosityStandard Verbosity = "standard"

	// VerbosityVerbose names theme, mode, and context.
	VerbosityVerbose Verbosity = "verbose"
)

// Validate checks if the verbosity is valid.
func (v Verbosity) Validate() error {
	switch v {
	case VerbosityMinimal, VerbosityStandard, VerbosityVerbose:
		return nil
	default:
		return fmt.Errorf("invalid verbosity: %s", v)
	}
}

// Output is the assistive output channel: an always-present, visually-hidden
// live region. Implementations must be non-blocking.
type Output interface {
	Announce(message string, priority Priority)
}

// OutputFunc adapts a function to Output.
type OutputFunc func(message string, priority Priority)

// Announce implements Output.
func (f OutputFunc) Announce(message string, priority Priority) {
	f(message, priority)
}

// Announcer writes verbosity-adjusted messages to the assistive output.
type Announcer struct {
	output    Output
	verbosity Verbosity
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
	events    *telemetry.EventPublisher
}

// NewAnnouncer creates an announcer. metrics and events may be nil.
func NewAnnouncer(output Output, verbosity Verbosity, logger zerolog.Logger, metrics *telemetry.Metrics, events *telemetry.EventPublisher) *Announcer {
	if verbosity == "" {
		verbosity = VerbosityStandard
	}
	return &Announcer{
		output:    output,
		verbosity: verbosity,
		logger:    logger.With().Str("component", "announcer").Logger(),
		metrics:   metrics,
		events:    events,
	}
}

// Announce emits a raw message at the given priority.
func (a *Announcer) Announce(message string, priority Priority) {
	if a.output == nil || message == "" {
		return
	}
	a.output.Announce(message, priority)
	a.logger.Debug().Str("priority", string(priority)).Str("message", message).Msg("announced")
	if a.metrics != nil {
		a.metrics.RecordAnnouncement(string(priority))
	}
	if a.events != nil {
		_ = a.events.PublishAnnouncement(message, string(priority))
	}
}

// AnnounceThemeChange emits the completion announcement for a transition,
// phrased per the configured verbosity.
func (a *Announcer) AnnounceThemeChange(desc theme.Descriptor, priority Priority) {
	var msg string
	switch a.verbosity {
	case VerbosityMinimal:
		msg = "Appearance changed"
	case VerbosityVerbose:
		ctx := desc.Context
		if ctx == "" {
			ctx = "default"
		}
		msg = fmt.Sprintf("Appearance changed to theme %s, %s mode, %s context", desc.ThemeID, desc.ColorMode, ctx)
	default:
		msg = fmt.Sprintf("Appearance changed to theme %s", desc.ThemeID)
	}
	a.Announce(msg, priority)
}

// BufferOutput is an Output that records announcements. Used by tests and by
// the CLI to echo what a screen reader would have spoken.
type BufferOutput struct {
	mu      sync.Mutex
	entries []BufferedAnnouncement
}

// NewBufferOutput creates an empty buffer sink.
func NewBufferOutput() *BufferOutput {
	return &BufferOutput{}
}

// BufferedAnnouncement is one recorded announcement.
type BufferedAnnouncement struct {
	Message  string
	Priority Priority
}

// Announce implements Output.
func (b *BufferOutput) Announce(message string, priority Priority) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, BufferedAnnouncement{Message: message, Priority: priority})
}

// Entries returns a copy of the recorded announcements.
func (b *BufferOutput) Entries() []BufferedAnnouncement {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BufferedAnnouncement, len(b.entries))
	copy(out, b.entries)
	return out
}

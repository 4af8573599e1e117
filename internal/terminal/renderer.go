package terminal

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"winsentry/internal/kafka"
	"winsentry/internal/model"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiClear  = "\033[H\033[2J"

	ruleWidth = 60
)

type RendererOption func(*Renderer)

// WithColor forces ANSI colour and screen clearing on or off.
func WithColor(enabled bool) RendererOption {
	return func(r *Renderer) { r.color = enabled }
}

func WithClock(now func() time.Time) RendererOption {
	return func(r *Renderer) { r.now = now }
}

// Renderer draws snapshots as a live terminal screen.
type Renderer struct {
	out      io.Writer
	interval time.Duration
	eventIDs []int64
	color    bool
	now      func() time.Time
}

func NewRenderer(out io.Writer, interval time.Duration, eventIDs []int64, opts ...RendererOption) *Renderer {
	r := &Renderer{
		out:      out,
		interval: interval,
		eventIDs: eventIDs,
		now:      time.Now,
	}
	if f, ok := out.(*os.File); ok {
		r.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render redraws the whole screen for snap. A nil snap renders the clear state.
func (r *Renderer) Render(snap *model.Snapshot) error {
	var b strings.Builder
	if r.color {
		b.WriteString(ansiClear)
	}
	r.header(&b, "WINSENTRY LIVE MONITOR")
	r.body(&b, snap)
	fmt.Fprintf(&b, "\nUpdating in %s... (Ctrl+C to Quit)\n", seconds(r.interval))
	_, err := io.WriteString(r.out, b.String())
	return err
}

// PublishSnapshot redraws the screen for every published snapshot.
func (r *Renderer) PublishSnapshot(_ context.Context, snap *model.Snapshot) error {
	return r.Render(snap)
}

// ShowSnapshot renders a snapshot received from another host.
func (r *Renderer) ShowSnapshot(msg *kafka.SnapshotMessage) error {
	var b strings.Builder
	if r.color {
		b.WriteString(ansiClear)
	}
	r.header(&b, "WINSENTRY REMOTE MONITOR")
	fmt.Fprintf(&b, "Host %s, channel %s, produced %s\n", msg.Host, msg.Channel, humanize.Time(msg.ProducedAt))
	r.body(&b, msg.Snapshot)
	_, err := io.WriteString(r.out, b.String())
	return err
}

// RenderAccessDenied prints the halt banner with its remediation text.
func (r *Renderer) RenderAccessDenied(err error, remediation string) error {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(r.paint(ansiRed+ansiBold, "CRITICAL ERROR: ACCESS DENIED"))
	b.WriteString("\n")
	b.WriteString(r.paint(ansiRed, err.Error()))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", ruleWidth) + "\n")
	b.WriteString(remediation + "\n")
	b.WriteString(strings.Repeat("-", ruleWidth) + "\n")
	_, werr := io.WriteString(r.out, b.String())
	return werr
}

func (r *Renderer) header(b *strings.Builder, title string) {
	clock := r.now().Format("15:04:05")
	b.WriteString(r.paint(ansiCyan+ansiBold, fmt.Sprintf("=== %s [%s] ===", title, clock)))
	b.WriteString("\n")
	b.WriteString(r.paint(ansiYellow, fmt.Sprintf("Scanning Windows Security Logs for Event ID %s (Failed Logins)...", r.ids())))
	b.WriteString("\n")
}

func (r *Renderer) body(b *strings.Builder, snap *model.Snapshot) {
	if snap.Clear() {
		b.WriteString("\n" + r.paint(ansiGreen, ">> Status: CLEAR") + "\n")
		b.WriteString("No failed login attempts detected in the recent logs.\n")
		return
	}

	warning := fmt.Sprintf(">> WARNING: %s FAILED LOGIN ATTEMPTS DETECTED", humanize.Comma(int64(snap.TotalCount)))
	if snap.Partial {
		warning += " (partial read)"
	}
	b.WriteString("\n" + r.paint(ansiRed+ansiBold, warning) + "\n")
	fmt.Fprintf(b, "Top offender: %s\n", snap.TopOffenderIP)
	b.WriteString(strings.Repeat("-", ruleWidth) + "\n")

	table := tablewriter.NewWriter(b)
	table.SetHeader([]string{"Time", "User", "IP", "Reason"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetHeaderLine(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	for _, rec := range snap.Records {
		table.Append([]string{
			rec.Timestamp.Local().Format("2006-01-02 15:04:05"),
			rec.TargetUser,
			rec.SourceIP,
			rec.FailureReason,
		})
	}
	table.Render()

	if shown := len(snap.Records); shown < snap.TotalCount {
		fmt.Fprintf(b, "(showing newest %d of %d)\n", shown, snap.TotalCount)
	}
	b.WriteString(strings.Repeat("-", ruleWidth) + "\n")
}

func (r *Renderer) ids() string {
	if len(r.eventIDs) == 0 {
		return "any"
	}
	parts := make([]string, len(r.eventIDs))
	for i, id := range r.eventIDs {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}

func (r *Renderer) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + ansiReset
}

func seconds(d time.Duration) string {
	n := int(d.Round(time.Second) / time.Second)
	if n == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", n)
}

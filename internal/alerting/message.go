package alerting

import (
	"fmt"
	"html"
	"strings"
	"time"

	"oi-surge-alerts/internal/instrument"
)

const timestampLayout = "2006-01-02 15:04:05 UTC"

// HorizonChange is the change of one series over one lookback horizon.
type HorizonChange struct {
	Horizon time.Duration
	Percent float64
	Defined bool
}

// Dimension summarises a triggered series (price or open interest).
type Dimension struct {
	Label   string
	Peak    float64
	Changes []HorizonChange
}

// Notification is the outbound payload of one alert.
type Notification struct {
	ID             string
	Instrument     instrument.Instrument
	At             time.Time
	Price          *Dimension
	OpenInterest   *Dimension
	SuspectedShort bool
	FirstAlert     time.Time
	LastRepeat     time.Time
	Repeats        int
}

// RenderMessage formats the notification with Telegram HTML markup.
func RenderMessage(note Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(note.Instrument.Display))

	if note.Price != nil {
		writeDimension(&b, "Price", note.Price)
	}
	if note.OpenInterest != nil {
		writeDimension(&b, "Open interest", note.OpenInterest)
	}
	if note.SuspectedShort {
		b.WriteString("⚠️ <b>Suspected short entry</b>: price falling while open interest rises\n")
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "First alert: %s\n", note.FirstAlert.UTC().Format(timestampLayout))
	if !note.LastRepeat.IsZero() {
		fmt.Fprintf(&b, "Latest repeat: %s (%d repeats)\n", note.LastRepeat.UTC().Format(timestampLayout), note.Repeats)
	}
	return b.String()
}

func writeDimension(b *strings.Builder, title string, d *Dimension) {
	fmt.Fprintf(b, "<b>%s</b> %s\n", title, d.Label)
	for _, c := range d.Changes {
		fmt.Fprintf(b, "%s: %s\n", formatHorizon(c.Horizon), FormatPercent(c))
	}
}

// FormatPercent renders a horizon change such as "+2.35%", or "N/A" when unknown.
func FormatPercent(c HorizonChange) string {
	if !c.Defined {
		return "N/A"
	}
	return fmt.Sprintf("%+.2f%%", c.Percent)
}

func formatHorizon(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%dm", int(d/time.Minute))
	}
	return d.String()
}

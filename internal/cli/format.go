package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"

	"github.com/owen-raum/dpd-tracking/internal/core/domain"
)

const (
	// historyLimit caps the events listed under "Event History".
	historyLimit = 10
	// eventTimeLayout matches the carrier's de-AT display, e.g. 15.01.2024, 14:30.
	eventTimeLayout = "02.01.2006, 15:04"
)

var (
	headerStyle = color.Style{color.OpBold, color.FgCyan}
	labelStyle  = color.Style{color.OpBold}
)

var statusColors = map[domain.StatusCategory]color.Color{
	domain.CategoryDelivered: color.Green,
	domain.CategoryInTransit: color.Yellow,
	domain.CategoryAtDepot:   color.Blue,
	domain.CategoryProblem:   color.Red,
	domain.CategoryUnknown:   color.White,
}

// WriteHuman prints a coloured summary of res.
func WriteHuman(w io.Writer, res *domain.TrackingResult) error {
	var b strings.Builder

	b.WriteString(headerStyle.Sprintf("📦 DPD Tracking: %s", res.TrackingNumber) + "\n")
	b.WriteString(color.Gray.Sprintf("Country: %s", res.Country) + "\n\n")

	status := res.CurrentStatus()
	b.WriteString(labelStyle.Sprint("Status: ") + statusColors[domain.ClassifyStatus(status)].Sprint(status) + "\n")

	if d := res.Destination; d != nil {
		b.WriteString(labelStyle.Sprint("Destination: ") + strings.TrimSpace(d.City+" "+d.ZipCode) + "\n")
	}

	b.WriteString(labelStyle.Sprint("Last Update: ") + formatEvent(res.Latest()) + "\n")

	if n := len(res.Events); n > 1 {
		b.WriteString("\n" + labelStyle.Sprint("Event History:") + "\n")
		for _, ev := range res.Events[:min(n, historyLimit)] {
			b.WriteString(color.Gray.Sprint("  • ") + formatEvent(ev) + "\n")
		}
		if n > historyLimit {
			b.WriteString(color.Gray.Sprintf("  ... and %d more events", n-historyLimit) + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatEvent(ev domain.TrackingEvent) string {
	parts := make([]string, 0, 3)
	if !ev.Timestamp.IsZero() {
		parts = append(parts, color.Gray.Sprint(ev.Timestamp.Format(eventTimeLayout)))
	}
	if ev.Location != "" {
		parts = append(parts, color.Cyan.Sprint(ev.Location))
	}
	if ev.Description != "" {
		parts = append(parts, ev.Description)
	}
	return strings.Join(parts, " ")
}

// WriteJSON prints res, raw carrier payload included, indented by two spaces.
func WriteJSON(w io.Writer, res *domain.TrackingResult) error {
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

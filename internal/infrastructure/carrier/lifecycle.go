package carrier

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/owen-raum/dpd-tracking/internal/core/domain"
)

// lifecycleLayout is the carrier's compact local timestamp, YYYYMMDDHHmmss.
const lifecycleLayout = "20060102150405"

type lifecycleResponse struct {
	Data []lifecycleParcel `json:"data"`
}

type lifecycleParcel struct {
	Pno       string `json:"pno"`
	Lifecycle *struct {
		Entries []json.RawMessage `json:"entries"`
	} `json:"lifecycle"`
}

type lifecycleEntry struct {
	Datetime string `json:"datetime"`
	State    *struct {
		Text string `json:"text"`
	} `json:"state"`
	DepotData []any `json:"depotData"`
}

// LifecycleAdapter normalizes {data: [{pno, lifecycle: {entries}}]} payloads.
type LifecycleAdapter struct{}

func (LifecycleAdapter) Format() domain.ResponseFormat { return domain.FormatLifecycle }

func (LifecycleAdapter) Normalize(raw json.RawMessage, q domain.TrackingQuery, endpoint domain.EndpointConfig) (*domain.TrackingResult, error) {
	var resp lifecycleResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, domain.Transient(fmt.Errorf("decode lifecycle response: %w", err))
	}
	if len(resp.Data) == 0 {
		return nil, domain.NotFound(q.TrackingNumber)
	}

	parcel := resp.Data[0]
	if parcel.Lifecycle == nil || len(parcel.Lifecycle.Entries) == 0 {
		return nil, domain.NotFound(q.TrackingNumber)
	}

	loc, err := endpoint.Location()
	if err != nil {
		return nil, err
	}

	events := make([]domain.TrackingEvent, 0, len(parcel.Lifecycle.Entries))
	for i, rawEntry := range parcel.Lifecycle.Entries {
		ev, err := lifecycleEvent(rawEntry, loc)
		if err != nil {
			return nil, domain.Transient(fmt.Errorf("lifecycle entry %d: %w", i, err))
		}
		events = append(events, ev)
	}

	tn := parcel.Pno
	if tn == "" {
		tn = q.TrackingNumber
	}
	return domain.NewTrackingResult(tn, q.CountryCode, events, raw)
}

func lifecycleEvent(raw json.RawMessage, loc *time.Location) (domain.TrackingEvent, error) {
	var entry lifecycleEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.TrackingEvent{}, fmt.Errorf("decode: %w", err)
	}

	ts, err := parseLifecycleTime(entry.Datetime, loc)
	if err != nil {
		return domain.TrackingEvent{}, err
	}

	desc := domain.UnknownStatus
	if entry.State != nil && entry.State.Text != "" {
		desc = entry.State.Text
	}

	return domain.TrackingEvent{
		Timestamp:   ts,
		Description: desc,
		Location:    joinDepot(entry.DepotData),
		Raw:         raw,
	}, nil
}

func parseLifecycleTime(s string, loc *time.Location) (time.Time, error) {
	if len(s) != len(lifecycleLayout) {
		return time.Time{}, fmt.Errorf("datetime %q: want %d digits", s, len(lifecycleLayout))
	}
	ts, err := time.ParseInLocation(lifecycleLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("datetime %q: %w", s, err)
	}
	return ts, nil
}

// joinDepot renders depotData as "a, b, c", skipping nulls and blanks.
func joinDepot(parts []any) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == nil {
			continue
		}
		s, ok := p.(string)
		if !ok {
			s = fmt.Sprint(p)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ", ")
}

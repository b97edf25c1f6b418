package carrier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/owen-raum/dpd-tracking/internal/core/domain"
)

// Layouts seen in parcel-lifecycle scan dates. Zone-less ones are carrier local.
var scanDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	lifecycleLayout,
}

// parcelLifecycleEnvelope accepts the document wrapped in
// parcellifecycleResponse or bare. The wrapped form wins when both are set.
type parcelLifecycleEnvelope struct {
	Response *struct {
		Data json.RawMessage `json:"parcelLifeCycleData"`
	} `json:"parcellifecycleResponse"`
	Data json.RawMessage `json:"parcelLifeCycleData"`
}

func (e parcelLifecycleEnvelope) lifecycleData() json.RawMessage {
	if e.Response != nil && !isNull(e.Response.Data) {
		return e.Response.Data
	}
	return e.Data
}

type parcelLifecycleData struct {
	ShipmentInfo struct {
		ParcelLabelNumber string `json:"parcelLabelNumber"`
	} `json:"shipmentInfo"`
	StatusInfo       json.RawMessage `json:"statusInfo"`
	DestinationDepot *struct {
		GeoLocation *struct {
			City    string `json:"city"`
			ZipCode string `json:"zipCode"`
		} `json:"geoLocation"`
	} `json:"destinationDepot"`
	ScanInfo *struct {
		ScanLegType json.RawMessage `json:"scanLegType"`
	} `json:"scanInfo"`
}

type scanLeg struct {
	Date         string `json:"date"`
	Label        string `json:"label"`
	ScanLocation *struct {
		City string `json:"city"`
	} `json:"scanLocation"`
}

type statusEntry struct {
	Label                string `json:"label"`
	Status               string `json:"status"`
	StatusHasBeenReached *bool  `json:"statusHasBeenReached"`
	IsCurrentStatus      bool   `json:"isCurrentStatus"`
}

// ParcelLifecycleAdapter normalizes parcellifecycleResponse payloads and
// checks the destination postal code when the query carries one.
type ParcelLifecycleAdapter struct {
	log zerolog.Logger
}

func NewParcelLifecycleAdapter(log zerolog.Logger) *ParcelLifecycleAdapter {
	return &ParcelLifecycleAdapter{log: log}
}

func (a *ParcelLifecycleAdapter) Format() domain.ResponseFormat { return domain.FormatParcelLifecycle }

func (a *ParcelLifecycleAdapter) Normalize(raw json.RawMessage, q domain.TrackingQuery, endpoint domain.EndpointConfig) (*domain.TrackingResult, error) {
	var env parcelLifecycleEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, domain.Transient(fmt.Errorf("decode parcel lifecycle response: %w", err))
	}
	body := env.lifecycleData()
	if isNull(body) {
		return nil, domain.NotFound(q.TrackingNumber)
	}

	var data parcelLifecycleData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, domain.Transient(fmt.Errorf("decode parcelLifeCycleData: %w", err))
	}

	dest := destinationOf(data)
	if q.WantsVerify() {
		if err := a.verifyPostalCode(q, dest); err != nil {
			return nil, err
		}
	}

	loc, err := endpoint.Location()
	if err != nil {
		return nil, err
	}

	var legs []json.RawMessage
	if data.ScanInfo != nil {
		legs, err = oneOrMany(data.ScanInfo.ScanLegType)
		if err != nil {
			return nil, domain.Transient(fmt.Errorf("decode scanLegType: %w", err))
		}
	}

	events := make([]domain.TrackingEvent, 0, len(legs))
	for i, rawLeg := range legs {
		ev, err := scanEvent(rawLeg, loc)
		if err != nil {
			return nil, domain.Transient(fmt.Errorf("scan leg %d: %w", i, err))
		}
		events = append(events, ev)
	}

	tn := data.ShipmentInfo.ParcelLabelNumber
	if tn == "" {
		tn = q.TrackingNumber
	}
	res, err := domain.NewTrackingResult(tn, q.CountryCode, events, raw)
	if err != nil {
		return nil, err
	}
	res.Status = currentStatus(data.StatusInfo)
	res.Destination = dest
	return res, nil
}

func (a *ParcelLifecycleAdapter) verifyPostalCode(q domain.TrackingQuery, dest *domain.Destination) error {
	if dest == nil || dest.ZipCode == "" {
		a.log.Warn().
			Str("tracking_number", q.TrackingNumber).
			Str("country", q.CountryCode).
			Msg("carrier reports no destination postal code, skipping verification")
		return nil
	}
	if !samePostalCode(q.PostalCode, dest.ZipCode) {
		return domain.PostalCodeMismatch(q.PostalCode, dest.ZipCode)
	}
	return nil
}

func destinationOf(data parcelLifecycleData) *domain.Destination {
	if data.DestinationDepot == nil || data.DestinationDepot.GeoLocation == nil {
		return nil
	}
	geo := data.DestinationDepot.GeoLocation
	if geo.City == "" && geo.ZipCode == "" {
		return nil
	}
	return &domain.Destination{City: strings.TrimSpace(geo.City), ZipCode: strings.TrimSpace(geo.ZipCode)}
}

func scanEvent(raw json.RawMessage, loc *time.Location) (domain.TrackingEvent, error) {
	var leg scanLeg
	if err := json.Unmarshal(raw, &leg); err != nil {
		return domain.TrackingEvent{}, fmt.Errorf("decode: %w", err)
	}

	ts, err := parseScanDate(leg.Date, loc)
	if err != nil {
		return domain.TrackingEvent{}, err
	}

	desc := strings.TrimSpace(leg.Label)
	if desc == "" {
		desc = domain.UnknownStatus
	}
	var where string
	if leg.ScanLocation != nil {
		where = strings.TrimSpace(leg.ScanLocation.City)
	}

	return domain.TrackingEvent{Timestamp: ts, Description: desc, Location: where, Raw: raw}, nil
}

func parseScanDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range scanDateLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// currentStatus reads statusInfo, which is either one object or a list of
// steps. For a list the current step wins, else the last reached one.
func currentStatus(raw json.RawMessage) string {
	items, err := oneOrMany(raw)
	if err != nil || len(items) == 0 {
		return ""
	}

	var last string
	for _, item := range items {
		var st statusEntry
		if json.Unmarshal(item, &st) != nil {
			continue
		}
		label := st.Label
		if label == "" {
			label = st.Status
		}
		if label == "" {
			continue
		}
		if st.IsCurrentStatus {
			return label
		}
		if st.StatusHasBeenReached == nil || *st.StatusHasBeenReached {
			last = label
		}
	}
	return last
}

// oneOrMany decodes a value that may be a single object or an array of them.
func oneOrMany(raw json.RawMessage) ([]json.RawMessage, error) {
	if isNull(raw) {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("expected object or array, got %.20s", trimmed)
	}
	return []json.RawMessage{trimmed}, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func samePostalCode(a, b string) bool {
	norm := func(s string) string {
		return strings.ToUpper(strings.Join(strings.Fields(s), ""))
	}
	return norm(a) == norm(b)
}

package result

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"goflare.io/urlguard/internal/models"
	"goflare.io/urlguard/pkg/serialization"
)

const (
	fieldValue     = "value"
	fieldTimestamp = "timestamp"
	// legacyFieldValue is accepted on load for snapshots written by older
	// deployments.
	legacyFieldValue = "features"
)

// timestampLayouts are tried in order when parsing a record timestamp. The
// naive layouts are interpreted in local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// droppedRecord describes a snapshot record skipped during load.
type droppedRecord struct {
	Key    string
	Reason string
}

// encodeSnapshot serialises entries as url -> {value, timestamp}. Only
// generic maps are written so that gob and JSON share one layout.
func encodeSnapshot(codec serialization.Codec, entries map[string]*models.Entry) ([]byte, error) {
	out := make(map[string]any, len(entries))
	for url, e := range entries {
		out[url] = map[string]any{
			fieldValue:     map[string]any(e.Value),
			fieldTimestamp: e.CreatedAt.Format(time.RFC3339Nano),
		}
	}

	var buf bytes.Buffer
	if err := codec.Encoder(&buf).Encode(out); err != nil {
		return nil, fmt.Errorf("failed to encode cache snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeSnapshot parses a snapshot. A document that is not a mapping is an
// error; individual malformed records are skipped and reported.
func decodeSnapshot(codec serialization.Codec, data []byte) (map[string]*models.Entry, []droppedRecord, error) {
	var raw map[string]any
	if err := codec.Decoder(bytes.NewReader(data)).Decode(&raw); err != nil {
		return nil, nil, err
	}
	if raw == nil {
		return nil, nil, errors.New("snapshot is not a mapping")
	}

	entries := make(map[string]*models.Entry, len(raw))
	var dropped []droppedRecord
	for url, rec := range raw {
		entry, err := decodeRecord(rec)
		if err != nil {
			dropped = append(dropped, droppedRecord{Key: url, Reason: err.Error()})
			continue
		}
		if url == "" {
			dropped = append(dropped, droppedRecord{Key: url, Reason: "empty key"})
			continue
		}
		entries[url] = entry
	}
	return entries, dropped, nil
}

func decodeRecord(rec any) (*models.Entry, error) {
	fields, ok := rec.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("record is %T, not a mapping", rec)
	}

	rawValue, ok := fields[fieldValue]
	if !ok {
		rawValue, ok = fields[legacyFieldValue]
	}
	if !ok {
		return nil, errors.New("missing value")
	}
	value, ok := rawValue.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("value is %T, not a mapping", rawValue)
	}

	rawTS, ok := fields[fieldTimestamp].(string)
	if !ok {
		return nil, errors.New("missing or non-string timestamp")
	}
	ts, err := parseTimestamp(rawTS)
	if err != nil {
		return nil, err
	}

	return models.NewEntry(models.FeatureVector(value), ts), nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}

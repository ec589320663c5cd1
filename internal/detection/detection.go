// FilePath: internal/detection/detection.go

// Package detection normalizes heterogeneous third-party detection payloads
// into one canonical record. It performs no I/O and has no side effects.
//
// Two payload variants are accepted: a structured form with typed fields,
// and the legacy vendor form, a semicolon-delimited "key:value" string
// (e.g. "Type:person;Confidence:87;TimestampUs:1700000000000000").
// Structured fields win when both are present; unrecognized legacy keys are
// dropped, not forwarded.
package detection

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Raw is the inbound payload before normalization.
type Raw struct {
	Type        string   `json:"type,omitempty"`
	Message     string   `json:"message,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	TimestampUs *int64   `json:"timestampUs,omitempty"`
	Data        string   `json:"data,omitempty"` // legacy vendor key:value string
}

// Record is the canonical detection record.
type Record struct {
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"` // UTC
	HumanTime  string    `json:"time,omitempty"`
}

// Legacy keys recognized in the vendor string form. Anything else is dropped.
const (
	keyType        = "Type"
	keyConfidence  = "Confidence"
	keyTimestampUs = "TimestampUs"
)

// Normalize converts a raw payload into a canonical Record. It fails only
// on genuinely malformed input (unparseable pair, non-numeric confidence or
// timestamp); absent fields fall back to defaults.
func Normalize(raw Raw) (Record, error) {
	typ := raw.Type
	confidence := 0.0
	if raw.Confidence != nil {
		confidence = *raw.Confidence
	}
	var timestampUs int64
	if raw.TimestampUs != nil {
		timestampUs = *raw.TimestampUs
	}

	if raw.Data != "" {
		parsed, err := parseVendorString(raw.Data)
		if err != nil {
			return Record{}, err
		}
		if typ == "" {
			typ = parsed.typ
		}
		if raw.Confidence == nil {
			confidence = parsed.confidence
		}
		if raw.TimestampUs == nil {
			timestampUs = parsed.timestampUs
		}
	}

	typ = normalizeType(typ)

	msg := raw.Message
	if msg == "" {
		msg = typ + " detected"
	}

	ts := time.UnixMicro(timestampUs).UTC()

	return Record{
		Type:       typ,
		Message:    msg,
		Confidence: confidence,
		Timestamp:  ts,
		HumanTime:  formatHumanTime(timestampUs),
	}, nil
}

type vendorFields struct {
	typ         string
	confidence  float64
	timestampUs int64
}

func parseVendorString(data string) (vendorFields, error) {
	var out vendorFields

	for _, pair := range strings.Split(data, ";") {
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, ":")
		if !found {
			return out, fmt.Errorf("malformed detection pair %q", pair)
		}

		switch key {
		case keyType:
			out.typ = value
		case keyConfidence:
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return out, fmt.Errorf("malformed detection confidence %q", value)
			}
			out.confidence = n
		case keyTimestampUs:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return out, fmt.Errorf("malformed detection timestamp %q", value)
			}
			out.timestampUs = n
		default:
			// unknown vendor keys are dropped
		}
	}

	return out, nil
}

// normalizeType takes the last dot-delimited segment of a vendor type label
// ("analytics.engine.person" -> "person") and capitalizes it. Empty input
// becomes "Object".
func normalizeType(rawType string) string {
	if rawType == "" {
		return "Object"
	}

	clean := rawType
	if idx := strings.LastIndex(rawType, "."); idx >= 0 {
		clean = rawType[idx+1:]
	}
	if clean == "" {
		return "Object"
	}

	r, size := utf8.DecodeRuneInString(clean)
	return strings.ToUpper(string(r)) + strings.ToLower(clean[size:])
}

// formatHumanTime renders a dashboard-friendly local-style time string.
// A zero timestamp yields the empty string.
func formatHumanTime(timestampUs int64) string {
	if timestampUs == 0 {
		return ""
	}
	return time.UnixMicro(timestampUs).UTC().Format("3:04 pm, 2 January, 2006")
}

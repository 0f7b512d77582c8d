package insights

import (
	"encoding/json"
	"strings"
)

// Insights is the fixed-shape result of an insights call. Fields the
// generator left out stay empty.
type Insights struct {
	Summary         string   `json:"summary"`
	KeyStats        []string `json:"keyStats"`
	Trends          []string `json:"trends"`
	Anomalies       []string `json:"anomalies"`
	Recommendations []string `json:"recommendations"`
}

// Extract returns the span from the first '{' to the last '}' in raw.
func Extract(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return "", &ExtractionError{Response: raw, Err: ErrNoJSONObject}
	}
	return raw[start : end+1], nil
}

// ParseResponse extracts and decodes the generator's answer. Only JSON
// validity is checked; values of unexpected types are rendered as text.
func ParseResponse(raw string) (*Insights, error) {
	frag, err := Extract(raw)
	if err != nil {
		return nil, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(frag), &doc); err != nil {
		return nil, &MalformedResponseError{Fragment: frag, Err: err}
	}
	return &Insights{
		Summary:         asText(doc["summary"]),
		KeyStats:        asList(doc["keyStats"]),
		Trends:          asList(doc["trends"]),
		Anomalies:       asList(doc["anomalies"]),
		Recommendations: asList(doc["recommendations"]),
	}, nil
}

func asText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// asList accepts an array or a lone value; absent or null gives an empty list.
func asList(raw json.RawMessage) []string {
	out := []string{}
	if len(raw) == 0 || string(raw) == "null" {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return append(out, asText(raw))
	}
	for _, it := range items {
		if s := asText(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package batch

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the outcome for a single id.
type Result struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// BatchResult aggregates the results of a batch operation.
type BatchResult struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// ParseIDs reads an id list argument. It accepts a single string, a
// comma-separated string or an array of strings. Blank entries are dropped.
// A missing or empty argument yields an empty slice and no error; callers
// decide whether that is valid.
func ParseIDs(param any, paramName string) ([]string, error) {
	var raw []string
	switch v := param.(type) {
	case nil:
		return []string{}, nil
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}

	ids := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			ids = append(ids, s)
		}
	}
	return ids, nil
}

// Process runs fn for each id in order and collects the outcomes. fn's error
// text is reported as-is, so it must be safe to show.
func Process(ids []string, fn func(id string) error) []Result {
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		result := Result{ID: id, Status: StatusSuccess}
		if err := fn(id); err != nil {
			result.Status = StatusError
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results
}

// Summarize aggregates results.
func Summarize(results []Result) BatchResult {
	br := BatchResult{Total: len(results), Results: results}
	for _, r := range results {
		if r.Status == StatusSuccess {
			br.Successful++
		} else {
			br.Failed++
		}
	}
	return br
}

// FormatResults renders the aggregated results as indented JSON.
func FormatResults(results []Result) string {
	data, _ := json.MarshalIndent(Summarize(results), "", "  ")
	return string(data)
}

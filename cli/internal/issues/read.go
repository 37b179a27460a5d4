package issues

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadResultsFile reads analyzer results from path. See ReadResults.
func ReadResultsFile(path string) ([]Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()
	return ReadResults(f)
}

// ReadResults decodes analyzer results from r. The input is either a JSON
// array of results or an object with a "results" array. Results without an
// analyzer id are rejected.
func ReadResults(r io.Reader) ([]Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("results input is empty")
	}
	var out []Result
	if data[0] == '{' {
		var wrapped struct {
			Results []Result `json:"results"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		out = wrapped.Results
	} else if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	for i := range out {
		if out[i].AnalyzerID == "" {
			return nil, fmt.Errorf("result %d: analyzer_id is required", i)
		}
		if out[i].Status == "" {
			return nil, fmt.Errorf("result %d (%s): status is required", i, out[i].AnalyzerID)
		}
		for j, iss := range out[i].Issues {
			if iss.Severity == "" {
				return nil, fmt.Errorf("result %d (%s) issue %d: severity is required", i, out[i].AnalyzerID, j)
			}
		}
		if out[i].Issues == nil {
			out[i].Issues = []Issue{}
		}
	}
	return out, nil
}

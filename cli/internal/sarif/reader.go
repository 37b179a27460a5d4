package sarif

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrUnsupportedVersion is returned for documents that are not SARIF 2.x.
var ErrUnsupportedVersion = errors.New("unsupported sarif version")

// ReadFile decodes the SARIF log at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sarif: %w", err)
	}
	return decode(data)
}

// Read decodes a SARIF log from r. Only 2.x logs are accepted; runs may be
// empty.
func Read(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read sarif: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (*Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("sarif input is empty")
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode sarif: %w", err)
	}
	switch {
	case doc.Version == "":
		return nil, fmt.Errorf("%w: version field is missing", ErrUnsupportedVersion)
	case !strings.HasPrefix(doc.Version, "2."):
		return nil, fmt.Errorf("%w %q; expected 2.1.0", ErrUnsupportedVersion, doc.Version)
	}
	return &doc, nil
}

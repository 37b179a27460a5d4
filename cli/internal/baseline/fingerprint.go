package baseline

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"triage/cli/internal/issues"
)

// unknownFile is hashed in place of the path of an issue without a location.
const unknownFile = "unknown"

type fingerprintPayload struct {
	File    string `json:"file"`
	Line    *int   `json:"line"`
	Message string `json:"message"`
}

// Fingerprint returns the hex sha256 of the compact JSON object
// {"file":…,"line":…,"message":…} for iss. An issue without a location hashes
// file "unknown" and line null. HTML characters are not escaped, so the
// encoding matches what other JSON encoders produce for the same fields.
func Fingerprint(iss issues.Issue) string {
	p := fingerprintPayload{File: unknownFile, Message: iss.Message}
	if iss.Location != nil {
		p.File = iss.Location.File
		line := iss.Location.Line
		p.Line = &line
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a struct of strings and an int cannot fail.
	_ = enc.Encode(p)
	sum := sha256.Sum256(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return hex.EncodeToString(sum[:])
}

package attachment

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DataURL renders raw bytes as data:<mime>;base64,<payload>.
func DataURL(mimeType string, raw []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

// Payload drops everything up to the first comma. Data without a comma is
// assumed to be bare base64 already.
func Payload(data string) string {
	if _, payload, ok := strings.Cut(data, ","); ok && payload != "" {
		return payload
	}
	return data
}

// Decode returns the binary content behind an attachment's data field.
func Decode(data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(Payload(data))
	if err != nil {
		return nil, fmt.Errorf("decode attachment payload failed: %w", err)
	}
	return raw, nil
}

package gaze

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeFrame decodes a base64 frame as sent by browsers. A data URL
// prefix ("data:image/jpeg;base64,") is stripped if present.
func DecodeFrame(encoded string) ([]byte, error) {
	if i := strings.IndexByte(encoded, ','); i >= 0 {
		encoded = encoded[i+1:]
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedFrame)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedFrame)
	}
	return data, nil
}

package tunnelproto

import (
	"encoding/base64"
	"strings"
)

// EarlyDataHeader carries base64url-encoded 0-RTT payload on the upgrade
// request.
const EarlyDataHeader = "Sec-WebSocket-Protocol"

const maxEarlyDataBytes = 8 << 10

// DecodeEarlyData decodes a 0-RTT payload from the upgrade header value.
// Both padded and unpadded URL-safe base64 are accepted.
func DecodeEarlyData(v string) ([]byte, bool) {
	v = strings.TrimRight(strings.TrimSpace(v), "=")
	if v == "" || base64.RawURLEncoding.DecodedLen(len(v)) > maxEarlyDataBytes {
		return nil, false
	}
	b, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil || len(b) == 0 {
		return nil, false
	}
	return b, true
}

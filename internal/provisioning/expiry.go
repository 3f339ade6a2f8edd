package provisioning

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

var expiryLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseExpiry accepts the expiry shapes the panels are known to return:
// an RFC3339 or sql style timestamp, a bare date, or unix seconds as a
// number or numeric string.
func parseExpiry(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, provisioningError(nil, "expiry missing from panel response")
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, provisioningError(err, "expiry is not a valid string")
		}
	} else {
		s = string(raw)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, provisioningError(nil, "expiry missing from panel response")
	}

	if unix, err := strconv.ParseInt(s, 10, 64); err == nil && unix > 0 {
		return time.Unix(unix, 0).UTC(), nil
	}

	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, provisioningError(nil, "unrecognised expiry %q", s)
}

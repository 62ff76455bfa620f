package scan

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var bagPathRe = regexp.MustCompile(`(?i)/bags/([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})`)

// legacyPayload is the structured QR format older labels still carry.
type legacyPayload struct {
	BagID string `json:"bagId"`
}

// ParseBagRef extracts the cart id from a decoded scan payload. Current
// labels encode a URL path ("/bags/{id}"); older ones a JSON object.
func ParseBagRef(payload string) (uuid.UUID, bool) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return uuid.Nil, false
	}

	if match := bagPathRe.FindStringSubmatch(payload); match != nil {
		if id, err := uuid.Parse(match[1]); err == nil {
			return id, true
		}
	}

	if strings.HasPrefix(payload, "{") {
		var legacy legacyPayload
		if err := json.Unmarshal([]byte(payload), &legacy); err == nil {
			if id, err := uuid.Parse(legacy.BagID); err == nil {
				return id, true
			}
		}
	}

	return uuid.Nil, false
}

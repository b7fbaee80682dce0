package outputrouter

import "encoding/json"

// extractSessionID reports the value of a top-level "session_id" string
// field if line parses as a JSON object carrying one (spec §4.5 step 1d).
func extractSessionID(line string) (string, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return "", false
	}
	id, ok := obj["session_id"].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

package outputrouter

import "testing"

func TestExtractSessionID(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantID  string
		wantOK  bool
	}{
		{"valid json with session_id", `{"session_id":"abc123","type":"init"}`, "abc123", true},
		{"valid json without session_id", `{"type":"init"}`, "", false},
		{"not json", "plain text line", "", false},
		{"session_id empty string", `{"session_id":""}`, "", false},
		{"session_id wrong type", `{"session_id":42}`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := extractSessionID(tt.line)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("extractSessionID(%q) = (%q, %v), want (%q, %v)", tt.line, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

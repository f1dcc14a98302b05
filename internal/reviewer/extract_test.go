package reviewer

import "testing"

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "bare object",
			content: `{"aligned": true}`,
			want:    `{"aligned": true}`,
		},
		{
			name:    "fenced block",
			content: "Here is my verdict:\n```json\n{\"aligned\": false, \"reason\": \"x\"}\n```\nThanks",
			want:    `{"aligned": false, "reason": "x"}`,
		},
		{
			name:    "prose around object",
			content: `Sure. {"aligned": false, "nested": {"a": 1}} hope that helps`,
			want:    `{"aligned": false, "nested": {"a": 1}}`,
		},
		{
			name:    "brace inside string",
			content: `{"reason": "uses } in text", "aligned": false}`,
			want:    `{"reason": "uses } in text", "aligned": false}`,
		},
		{
			name:    "no json",
			content: "I think it is fine.",
			want:    "",
		},
		{
			name:    "unbalanced",
			content: `{"aligned": true`,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.content); got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

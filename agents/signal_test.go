package agents

import "testing"

func TestExtractSignal(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"buy", "Thesis holds.\n\nFINAL DECISION: BUY", "BUY"},
		{"sell", "Momentum broke.\nFINAL DECISION: SELL", "SELL"},
		{"hold", "Mixed signals. FINAL DECISION: HOLD", "HOLD"},
		{"lowercase marker", "final decision: buy", "BUY"},
		{"last marker wins", "FINAL DECISION: SELL was the draft. FINAL DECISION: BUY", "BUY"},
		{"last token after marker wins", "FINAL DECISION: not SELL but BUY", "BUY"},
		{"no marker", "I think we should buy a lot", "HOLD"},
		{"marker without signal", "FINAL DECISION: undecided", "HOLD"},
		{"empty", "", "HOLD"},
		{"signal before marker ignored", "BUY BUY BUY. FINAL DECISION: HOLD", "HOLD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractSignal(tt.text); got != tt.want {
				t.Errorf("ExtractSignal(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

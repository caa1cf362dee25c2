package agents

import (
	"regexp"
	"strings"
)

var signalRe = regexp.MustCompile(`\b(BUY|SELL|HOLD)\b`)

// ExtractSignal pulls the trading signal out of a final decision text:
// the last BUY, SELL, or HOLD token after the final "FINAL DECISION:"
// marker. A missing marker or signal yields the conservative HOLD.
func ExtractSignal(decision string) string {
	idx := strings.LastIndex(strings.ToUpper(decision), "FINAL DECISION:")
	if idx < 0 {
		return "HOLD"
	}
	tail := strings.ToUpper(decision[idx:])
	matches := signalRe.FindAllString(tail, -1)
	if len(matches) == 0 {
		return "HOLD"
	}
	return matches[len(matches)-1]
}

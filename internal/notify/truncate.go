package notify

import "strings"

// maxPushMessageLen clips long assistant output in push bodies.
const maxPushMessageLen = 500

// truncateMessage clips s to limit bytes plus an ellipsis, breaking at the last whole word when one falls in the final
// fifth of the budget.
func truncateMessage(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > limit*4/5 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ") + "..."
}

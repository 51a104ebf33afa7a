package ledger

import "time"

// CooldownWindow is the minimum spacing between two counted plays of the same item.
// It must be identical everywhere counts are recorded.
const CooldownWindow = 5 * time.Minute

// ShouldCount reports whether a play at nowMs counts as a fresh view given the
// last counted play at lastEventTimeMs. Both are unix milliseconds; a zero
// lastEventTimeMs means the item was never played.
func ShouldCount(nowMs, lastEventTimeMs int64, window time.Duration) bool {
	if lastEventTimeMs == 0 {
		return true
	}
	return nowMs-lastEventTimeMs > window.Milliseconds()
}

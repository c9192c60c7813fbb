package broadcast

import (
	"github.com/wfunc/matchserver/logger"
)

// Sender is the minimal send capability a room keeps per member. The
// transport's Connection satisfies it; tests substitute a double.
type Sender interface {
	SendJSON(v interface{}) error
}

// Target pairs a player id with its send handle so delivery failures
// can be attributed in the log.
type Target struct {
	PlayerID int64
	Conn     Sender
}

// Fanout delivers payload to every target, best effort. A failed or
// slow member never aborts delivery to the rest; the underlying
// connection bounds each send with a write deadline.
func Fanout(targets []Target, payload interface{}) {
	for _, t := range targets {
		if err := t.Conn.SendJSON(payload); err != nil {
			logger.Log.Warnf("Broadcast to player %d failed: %v", t.PlayerID, err)
		}
	}
}

package lobby

import "fmt"

// Participant identifies one lobby member. The coordinators reference
// participants by ID only; the handle exists for chat output.
type Participant struct {
	ID     string
	Handle string
}

// Actions is the outward side-effect surface of a session. The transport
// owns how these reach the real lobby; the session and its plugins only
// decide when to call them.
type Actions interface {
	ExecuteAbort()
	ExecuteRecast(mapID string)
	Reply(text string)
}

// Logger matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// LogActions records privileged actions to the logger instead of a live
// transport. Used when matchwarden runs without a lobby connection.
type LogActions struct {
	Logger Logger
}

// ExecuteAbort implements Actions.
func (a LogActions) ExecuteAbort() {
	a.logf("action: abort match")
}

// ExecuteRecast implements Actions.
func (a LogActions) ExecuteRecast(mapID string) {
	a.logf("action: recast map %s", mapID)
}

// Reply implements Actions.
func (a LogActions) Reply(text string) {
	a.logf("reply: %s", text)
}

func (a LogActions) logf(format string, args ...any) {
	if a.Logger != nil {
		a.Logger.Printf(format, args...)
		return
	}
	fmt.Printf(format+"\n", args...)
}

package plugin

import (
	"github.com/kingrea/matchwarden/internal/eventbus"
)

// Plugin is implemented by every coordinator registered with a lobby
// session. The host holds a list of this interface and never a
// plugin-specific type.
type Plugin interface {
	// Name identifies the plugin in status output and logs.
	Name() string
	// CommandPrefix is the chat command this plugin answers to, including
	// the leading bang ("!abort").
	CommandPrefix() string
	// OnEvent receives every lifecycle event on the session's serialized
	// path. Out-of-window input is ignored, never an error.
	OnEvent(ev eventbus.Event)
	// StatusSummary returns a one-line state description for !status and
	// the console.
	StatusSummary() string
	// HelpLines lists the chat commands the plugin understands.
	HelpLines() []string
}

// Host is the narrow callback surface a coordinator drives. The session
// decides how the calls reach the lobby transport; plugins only decide
// when to make them.
type Host interface {
	// ExecuteAbort aborts the running match.
	ExecuteAbort()
	// ExecuteRecast re-rolls the current map selection.
	ExecuteRecast(mapID string)
	// Reply sends a chat line back to the lobby.
	Reply(text string)
	// Post enqueues an event onto the session's serialized queue. Timer
	// callbacks use it instead of mutating plugin state directly.
	Post(ev eventbus.Event)
}

// Logger matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

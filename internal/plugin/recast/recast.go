package recast

import (
	"strings"

	"github.com/kingrea/matchwarden/internal/eventbus"
	"github.com/kingrea/matchwarden/internal/plugin"
)

// ID is the registry identifier for the recast coordinator.
const ID = "recast"

const commandPrefix = "!recast"

// Coordinator re-rolls the current map selection at most once per
// selection window. A confirmed selection change re-arms it; the privileged
// command spends it. No voting or timer is involved, only the cycle guard.
type Coordinator struct {
	host   plugin.Host
	logger plugin.Logger

	armed   bool
	mapID   string
	recasts int
}

// Factory returns a registry factory for the recast coordinator. Its
// recognized option set is empty.
func Factory(logger plugin.Logger) plugin.Factory {
	return func(host plugin.Host, cfg plugin.Config) (plugin.Plugin, error) {
		return &Coordinator{host: host, logger: logger}, nil
	}
}

// New builds a coordinator with no pending selection.
func New(host plugin.Host) *Coordinator {
	return &Coordinator{host: host}
}

// Name implements plugin.Plugin.
func (c *Coordinator) Name() string { return ID }

// CommandPrefix implements plugin.Plugin.
func (c *Coordinator) CommandPrefix() string { return commandPrefix }

// OnEvent implements plugin.Plugin.
func (c *Coordinator) OnEvent(ev eventbus.Event) {
	switch ev.Kind {
	case eventbus.KindProtocolState:
		if ev.StateKind == eventbus.StateMapChanged {
			c.armed = true
			c.mapID = ev.MapID
		}
	case eventbus.KindCommand:
		c.command(ev)
	}
}

func (c *Coordinator) command(ev eventbus.Event) {
	fields := strings.Fields(ev.Command)
	if len(fields) == 0 || fields[0] != commandPrefix {
		return
	}
	if ev.Authority < eventbus.AuthorityElevated {
		return
	}
	if !c.armed {
		c.logf("recast: already spent for this selection, ignoring")
		return
	}
	c.armed = false
	c.recasts++
	c.logf("recast: re-rolling map %s for %s", c.mapID, ev.Handle)
	c.host.ExecuteRecast(c.mapID)
}

// StatusSummary implements plugin.Plugin.
func (c *Coordinator) StatusSummary() string {
	if c.armed {
		return "recast: armed"
	}
	return "recast: spent"
}

// HelpLines implements plugin.Plugin.
func (c *Coordinator) HelpLines() []string {
	return []string{
		commandPrefix + " — re-roll the current map selection (host only, once per selection)",
	}
}

func (c *Coordinator) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

package managed

import (
	"github.com/drblury/flowmgmt/internal/runtime/dump"
	"github.com/drblury/flowmgmt/internal/runtime/engine"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
	"github.com/drblury/flowmgmt/internal/runtime/stats"
)

// Env is shared by the managed objects of one context.
type Env struct {
	Context  *engine.Context
	Identity naming.ContextIdentity
	// Stats resolves statistics of sibling objects for dumps and resets.
	Stats     dump.StatsLookup
	Resources *stats.ResourceTracker
}

func (e *Env) lookup(kind naming.Kind, local string) *stats.Statistics {
	if e.Stats == nil {
		return nil
	}
	return e.Stats.Stats(kind, local)
}

// statsLookup never returns nil, so dumps work without a lookup.
func (e *Env) statsLookup() dump.StatsLookup { return envLookup{e} }

type envLookup struct{ env *Env }

func (l envLookup) Stats(kind naming.Kind, local string) *stats.Statistics {
	return l.env.lookup(kind, local)
}

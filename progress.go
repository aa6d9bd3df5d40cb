package ivy

import (
	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/resolve"
)

// ProgressType identifies a progress event.
type ProgressType int

const (
	ProgressResolveStart ProgressType = iota
	ProgressResolveEnd
	ProgressModuleLoaded
	ProgressModuleFailed
	ProgressModuleEvicted
	ProgressDownloadStart
	ProgressDownloadEnd
)

func (t ProgressType) String() string {
	switch t {
	case ProgressResolveStart:
		return "resolve_start"
	case ProgressResolveEnd:
		return "resolve_end"
	case ProgressModuleLoaded:
		return "module_loaded"
	case ProgressModuleFailed:
		return "module_failed"
	case ProgressModuleEvicted:
		return "module_evicted"
	case ProgressDownloadStart:
		return "download_start"
	case ProgressDownloadEnd:
		return "download_end"
	}
	return "unknown"
}

// ProgressEvent reports one step of a resolution.
type ProgressEvent struct {
	Type ProgressType

	// Module is the revision concerned. For resolve events it is the root.
	Module module.RevisionID

	// Conf is the root configuration for eviction events.
	Conf string

	// Artifact is set for download events.
	Artifact *module.Artifact

	// Err is set for failed loads and downloads.
	Err error
}

// observer forwards engine events to metrics and the progress callback.
type observer struct {
	cfg *resolverConfig
}

var _ resolve.Observer = (*observer)(nil)

func (o *observer) NodeLoaded(n *resolve.Node) {
	o.cfg.metrics.nodeLoaded()
	o.cfg.progress(ProgressEvent{Type: ProgressModuleLoaded, Module: n.ResolvedID()})
}

func (o *observer) LoadFailed(id module.RevisionID, err error) {
	o.cfg.metrics.loadFailed()
	o.cfg.progress(ProgressEvent{Type: ProgressModuleFailed, Module: id, Err: err})
}

func (o *observer) ConflictResolved(manager string, candidates, selected int) {
	o.cfg.metrics.conflictResolved(manager, candidates-selected)
}

func (o *observer) Evicted(n *resolve.Node, rootConf string, transitive bool) {
	o.cfg.metrics.evicted(transitive)
	o.cfg.progress(ProgressEvent{Type: ProgressModuleEvicted, Module: n.ResolvedID(), Conf: rootConf})
}

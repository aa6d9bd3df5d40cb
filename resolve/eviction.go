package resolve

// evictTransitively evicts, per root configuration, every node whose
// callers are all evicted there. nodes should be most dependent first so
// that one pass settles most of them; passes repeat until nothing changes.
func (r *runner) evictTransitively(nodes []*Node, rootConfs []string) {
	for changed := true; changed; {
		changed = false
		for _, n := range nodes {
			if n.root || n.IsCompletelyEvicted() {
				continue
			}
			for _, rc := range rootConfs {
				if n.IsEvicted(rc) || !allCallersEvicted(n, rc) {
					continue
				}
				r.log.Debug("module transitively evicted", "module", n.String(), "conf", rc)
				n.markEvicted(rc, nil, nil, nil)
				r.cfg.Observer.Evicted(n, rc, true)
				changed = true
			}
		}
	}
}

func allCallersEvicted(n *Node, rootConf string) bool {
	callers := n.callers[rootConf]
	if len(callers) == 0 {
		return false
	}
	for _, c := range callers {
		if cn := c.Node.realNode(); cn.root || !cn.IsEvicted(rootConf) {
			return false
		}
	}
	return true
}

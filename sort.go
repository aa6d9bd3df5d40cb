package ivy

import (
	"strings"

	"github.com/eed3si9n/ivy/module"
	"github.com/eed3si9n/ivy/toposort"
)

// SortModuleDescriptors orders mds so that every module comes after the
// modules it depends on. Dependencies are matched with the settings'
// version matcher, so a dependency on "1.+" orders after a present "1.2".
// Cycles are logged and broken.
func SortModuleDescriptors(mds []*module.Descriptor, opts ...Option) ([]*module.Descriptor, error) {
	cfg, err := newResolverConfig(opts...)
	if err != nil {
		return nil, err
	}
	onCycle := func(cycle []module.RevisionID) {
		ids := make([]string, len(cycle))
		for i, id := range cycle {
			ids[i] = id.String()
		}
		cfg.log().Warn("circular dependency", "cycle", strings.Join(ids, " -> "))
	}
	return toposort.Descriptors(mds, cfg.settings.VersionMatcher(), onCycle), nil
}

package module

import "slices"

// Known statuses, from most to least mature.
const (
	StatusRelease     = "release"
	StatusMilestone   = "milestone"
	StatusIntegration = "integration"
)

// DefaultStatus is given to descriptors that declare none.
const DefaultStatus = StatusIntegration

var statuses = []string{StatusRelease, StatusMilestone, StatusIntegration}

// StatusPriority returns the rank of status; lower is more mature. Unknown
// statuses rank after every known one.
func StatusPriority(status string) int {
	if i := slices.Index(statuses, status); i >= 0 {
		return i
	}
	return len(statuses)
}

// IsStatus reports whether status is known.
func IsStatus(status string) bool {
	return slices.Contains(statuses, status)
}

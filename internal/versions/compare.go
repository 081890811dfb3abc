// Package versions compares release tags across runs.
package versions

import "github.com/Masterminds/semver/v3"

// Compare orders two release tags. ok is false when either tag is not a
// semantic version (jenkins-style "2.450" parses, "weekly-2024-01" does not),
// in which case the tags carry no ordering.
func Compare(a, b string) (cmp int, ok bool) {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return 0, false
	}
	return va.Compare(vb), true
}

// IsRegression reports whether fetched is strictly older than previous.
// Tags that cannot be ordered are never reported.
func IsRegression(fetched, previous string) bool {
	cmp, ok := Compare(fetched, previous)
	return ok && cmp < 0
}

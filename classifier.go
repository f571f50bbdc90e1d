package ofstats

import (
	"regexp"
	"strings"
)

// usersCollectionPath is the canonical users-collection segment of the
// target site's API.
const usersCollectionPath = "/api2/v2/users/"

// profileExcludeFragments lists sub-resource suffixes whose responses are not
// full profile documents and must never reach the normalizer.
var profileExcludeFragments = []string{
	"/posts",
	"/media",
	"/stories",
	"/subscribers",
	"/subscriptions",
	"/lists",
	"/friends",
	"/labels",
	"/social",
	"/highlights",
	"/promotions",
	"/profile-view",
}

// profilePathRE confirms the <collection>/<identifier> shape: an
// alphanumeric/dot/dash/underscore token, optionally followed by a query.
var profilePathRE = regexp.MustCompile(`/api2/v2/users/[A-Za-z0-9_.-]+(\?.*)?$`)

// IsProfileURL reports whether rawURL targets the single-user-profile
// endpoint family. It is a pure predicate and safe on arbitrary, possibly
// malformed input, since the host page controls these strings.
func IsProfileURL(rawURL string) bool {
	if !strings.Contains(rawURL, usersCollectionPath) {
		return false
	}
	for _, frag := range profileExcludeFragments {
		if strings.Contains(rawURL, frag) {
			return false
		}
	}
	return profilePathRE.MatchString(rawURL)
}

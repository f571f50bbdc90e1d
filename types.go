package ofstats

import "encoding/json"

// ProfileRecord is the canonical projection of a single-profile API response.
// Every optional field is a pointer: nil means the endpoint did not report it,
// which consumers must distinguish from a reported zero. Field names and JSON
// tags match the wire format, so present source fields carry over unchanged.
type ProfileRecord struct {
	// ID is opaque: the wire sends numbers for most accounts but the value
	// is never interpreted, only echoed into probe URLs.
	ID       json.RawMessage `json:"id,omitempty"`
	Username string          `json:"username,omitempty"`
	Name     string          `json:"name,omitempty"`

	// Stats counters.
	SubscribersCount     *int `json:"subscribersCount,omitempty"`
	SubscriptionsCount   *int `json:"subscriptionsCount,omitempty"`
	PostsCount           *int `json:"postsCount,omitempty"`
	PhotosCount          *int `json:"photosCount,omitempty"`
	VideosCount          *int `json:"videosCount,omitempty"`
	AudiosCount          *int `json:"audiosCount,omitempty"`
	MediasCount          *int `json:"mediasCount,omitempty"`
	ArchivedPostsCount   *int `json:"archivedPostsCount,omitempty"`
	FavoritesCount       *int `json:"favoritesCount,omitempty"`
	FavoritedCount       *int `json:"favoritedCount,omitempty"`
	FinishedStreamsCount *int `json:"finishedStreamsCount,omitempty"`

	// Profile metadata. Dates stay in the wire's string form.
	JoinDate               *string  `json:"joinDate,omitempty"`
	FirstPublishedPostDate *string  `json:"firstPublishedPostDate,omitempty"`
	LastSeen               *string  `json:"lastSeen,omitempty"`
	IsVerified             *bool    `json:"isVerified,omitempty"`
	IsPerformer            *bool    `json:"isPerformer,omitempty"`
	SubscribePrice         *float64 `json:"subscribePrice,omitempty"`
	Location               *string  `json:"location,omitempty"`
	Website                *string  `json:"website,omitempty"`
	About                  *string  `json:"about,omitempty"`

	// Relationship to the viewing account.
	SubscribedBy           *bool   `json:"subscribedBy,omitempty"`
	SubscribedByExpire     *bool   `json:"subscribedByExpire,omitempty"`
	SubscribedByExpireDate *string `json:"subscribedByExpireDate,omitempty"`
	SubscribedByDuration   *string `json:"subscribedByDuration,omitempty"`
	IsFriend               *bool   `json:"isFriend,omitempty"`

	// Capability flags.
	CanEarn    *bool `json:"canEarn,omitempty"`
	HasStream  *bool `json:"hasStream,omitempty"`
	HasStories *bool `json:"hasStories,omitempty"`

	// Raw is the unmodified source payload, kept so consumers can reach
	// fields not yet promoted to the canonical set.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// idToken renders the opaque id as a bare path token, or "" when absent.
func (r *ProfileRecord) idToken() string {
	s := string(r.ID)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}

// EventProfileIntercepted names the envelope carried to same-process
// subscribers when a live-matching profile is observed.
const EventProfileIntercepted = "ofstats:profile"

// ProfileEvent is the fixed envelope dispatched by the propagator.
type ProfileEvent struct {
	Name   string         `json:"name"`
	Record *ProfileRecord `json:"record"`
}

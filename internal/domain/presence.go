package domain

import "time"

// OnlineThreshold is how recent a heartbeat must be for a user to count as online.
const OnlineThreshold = 2 * time.Minute

// IsUserOnline reports whether u should be shown as online at now. Users who
// hide their presence or have never been seen are offline. The threshold is
// inclusive.
func IsUserOnline(u User, now time.Time) bool {
	if !u.OnlineVisible || u.LastSeenAt == nil {
		return false
	}
	return now.Sub(*u.LastSeenAt) <= OnlineThreshold
}

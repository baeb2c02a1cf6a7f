package models

// DayLength is the size of one leaderboard rotation bucket, in seconds.
const DayLength int64 = 86400

// DayIndex maps a unix timestamp to its leaderboard day bucket.
func DayIndex(unixTime int64) int64 {
	return unixTime / DayLength
}

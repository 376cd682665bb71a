package domain

// Millisecond widths of the two bucketing granularities used across the
// pipeline. All timestamps in this package are Unix epoch milliseconds.
const (
	MinuteMs = int64(60_000)
	SecondMs = int64(1_000)
)

// FloorToMinute floors an epoch-ms timestamp to its minute start.
func FloorToMinute(tsMs int64) int64 {
	return tsMs - tsMs%MinuteMs
}

// FloorToSecond floors an epoch-ms timestamp to its second start.
func FloorToSecond(tsMs int64) int64 {
	return tsMs - tsMs%SecondMs
}

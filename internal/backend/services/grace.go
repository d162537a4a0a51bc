package services

import (
	"math"
	"slices"
)

const (
	DefaultGracePeriod = 5
	MinSmartGrace      = 2
	MinGraceSamples    = 3
	graceSafetyFactor  = 1.5
)

// EstimateGrace считает grace period в минутах по худшему опозданию в выборке.
// driftSeconds секунды между соседними пингами, expectedIntervalSeconds ожидаемый интервал.
func EstimateGrace(driftSeconds []int64, expectedIntervalSeconds int64) int {
	if len(driftSeconds) < MinGraceSamples {
		return DefaultGracePeriod
	}

	worst := slices.Max(driftSeconds)
	lateness := max(0, worst-expectedIntervalSeconds)

	bufferSeconds := math.Ceil(float64(lateness) * graceSafetyFactor)
	bufferMinutes := int(math.Ceil(bufferSeconds / 60))

	return max(MinSmartGrace, bufferMinutes)
}

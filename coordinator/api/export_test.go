package api

// SetMaxWeightsSize changes the upload limit for the duration of a test.
func SetMaxWeightsSize(size int64) func() {
	prev := maxWeightsSize
	maxWeightsSize = size

	return func() { maxWeightsSize = prev }
}

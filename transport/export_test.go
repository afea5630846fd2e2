package transport

// ResetLastFailure clears the process-wide failure detail.
func ResetLastFailure() { lastFailure.Store(nil) }

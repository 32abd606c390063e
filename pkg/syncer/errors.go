package syncer

import "fmt"

// FetchError means the provider could not produce levels. The previous
// snapshot is still in place and should be shown as stale.
type FetchError struct {
	StationID string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch levels for station %s: %v", e.StationID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

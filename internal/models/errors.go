package models

import "fmt"

// FetchError is the failure a source client reports after its retry
// budget is spent. Status 0 means the request never got an HTTP
// response (timeout, DNS, connection reset).
type FetchError struct {
	Source    string
	Status    int
	Retryable bool
	Err       error
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: transport failure: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %v", e.Source, e.Status, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

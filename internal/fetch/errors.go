package fetch

import (
	"fmt"
	"net/http"
	"strings"
)

// EndpointFailure describes one primary endpoint that could not be fetched in full.
type EndpointFailure struct {
	Name string
	Url  string
	// Status of the failed request, 0 for transport errors.
	Status int
	// Pages that were fetched before the failure.
	Pages int
}

// FetchError fails the primary phase, none of its data is usable.
type FetchError struct {
	Failures []EndpointFailure
}

func (e *FetchError) Error() string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = fmt.Sprintf("%s (status %d after %d page(s))", f.Name, f.Status, f.Pages)
	}
	return fmt.Sprintf("failed to fetch primary endpoints: %s", strings.Join(names, ", "))
}

// DetailFetchError is a single failed detail fetch, it is logged and the pair is left
// out of the dataset.
type DetailFetchError struct {
	Pair   UserCourse
	Status int
	Err    error
}

func (e *DetailFetchError) Error() string {
	return fmt.Sprintf(
		"fetch detail for %s/%s: status %d: %v",
		e.Pair.Username, e.Pair.CourseId, e.Status, e.Err,
	)
}

func (e *DetailFetchError) Unwrap() error {
	return e.Err
}

// SessionExpiredError is the cause of a DetailFetchError when the platform rejected
// the session, every further request will fail the same way until re-authentication.
type SessionExpiredError struct {
	Pair UserCourse
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf(
		"session expired (status %d) while fetching %s/%s",
		http.StatusUnauthorized, e.Pair.Username, e.Pair.CourseId,
	)
}

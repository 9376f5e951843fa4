package sdk

import "fmt"

type DashboardError string

func (err DashboardError) Error() string {
	return string(err)
}

const (
	ErrUnknownField   = DashboardError("field has no distinct-value listing")
	ErrNoDataSource   = DashboardError("no data source configured")
	ErrRepositoryNil  = DashboardError("dashboard needs a repository")
	ErrUnknownDataset = DashboardError("dataset is not a JSON array of records")
)

// ValidationError reports a filter parameter that could not be turned into a
// predicate. Handlers answer it with 400 instead of 500.
type ValidationError struct {
	Param  string
	Value  string
	Reason string
}

func (err *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", err.Param, err.Value, err.Reason)
}

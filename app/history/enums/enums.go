// Package enums provides type-safe enumeration types for history records.
//
// The enum types are defined as unexported integer types in this file, and the go:generate
// directives invoke go-pkgz/enum to create the exported types with all methods in separate
// files (*_enum.go).
//
// For each enum type, the generator creates:
//   - An exported struct type (e.g., JobStatus) with name and value fields
//   - String() and Index() methods
//   - Parse functions (e.g., ParseJobStatus) for string-to-enum conversion
//   - Database methods (Scan/Value) for SQL compatibility
//   - Text marshaling methods (MarshalText/UnmarshalText), used by JSON and record decoding
//   - Exported values for each enum constant (e.g., JobStatusRunning, PlatformGKE)
//
// Usage:
//
//	status := enums.JobStatusRunning
//	fmt.Println(status.String()) // "running"
//
//	parsed, err := enums.ParseJobStatus("succeeded")
//	if err != nil {
//	    // handle invalid input
//	}
//
// To regenerate the enum types after modifications:
//
//	go generate ./app/history/enums
package enums

//go:generate go run github.com/go-pkgz/enum@latest -type jobStatus -lower
//go:generate go run github.com/go-pkgz/enum@latest -type platform -lower

// jobStatus represents the status of a run.
// This is an unexported type used only as input for the code generator.
// Use the exported JobStatus type and its values in actual code.
type jobStatus int

const (
	jobStatusUnknown jobStatus = iota
	jobStatusSubmitted
	jobStatusRunning
	jobStatusSucceeded
	jobStatusFailed
	jobStatusStopped
)

// platform represents compute platform a run executed on.
// This is an unexported type used only as input for the code generator.
// Use the exported Platform type and its values in actual code.
type platform int

const (
	platformLocal platform = iota
	platformCAIP
	platformGKE
	platformTest
)

// Finished reports if status is terminal
func (e JobStatus) Finished() bool {
	return e == JobStatusSucceeded || e == JobStatusFailed || e == JobStatusStopped
}

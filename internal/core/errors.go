package core

import (
	"errors"
	"fmt"
	"strings"
)

// errors on building a pipeline.
var (
	ErrNameTooLong                     = errors.New("name must be less than 40 characters")
	ErrNameInvalidChars                = errors.New("name must only contain alphanumeric characters, dashes, dots, and underscores")
	ErrInvalidSchedule                 = errors.New("invalid schedule")
	ErrScheduleMustBeStringOrArray     = errors.New("schedule must be a string or an array of strings")
	ErrStageNameRequired               = errors.New("stage name must be specified")
	ErrStageNameDuplicate              = errors.New("stage name must be unique")
	ErrStageNameTooLong                = errors.New("stage name must be less than 40 characters")
	ErrStageCommandIsRequired          = errors.New("stage command is required")
	ErrParamNameRequired               = errors.New("param name must be specified")
	ErrParamNameDuplicate              = errors.New("param name must be unique within a stage")
	ErrUnknownParamKind                = errors.New("unknown param kind")
	ErrUnknownCacheMode                = errors.New("unknown cache mode")
	ErrOutputNameRequired              = errors.New("output name must be specified")
	ErrOutputNameDuplicate             = errors.New("output name must be unique within a stage")
	ErrOutputPathRequired              = errors.New("output path must be specified")
	ErrExecutorTypeMustBeString        = errors.New("executor.type value must be string")
	ErrExecutorConfigValueMustBeMap    = errors.New("executor.config value must be a map")
	ErrExecutorHasInvalidKey           = errors.New("executor has invalid key")
	ErrExecutorConfigMustBeStringOrMap = errors.New("executor config must be string or map")
	ErrInvalidEnvValue                 = errors.New("env config should be map of strings or array of key=value formatted string")
	ErrDotEnvMustBeStringOrArray       = errors.New("dotenv must be a string or an array of strings")
	ErrInvalidSignal                   = errors.New("invalid signal")
	ErrBindingMalformed                = errors.New("binding reference must be stage.name, params.name, or samples")
	ErrBindingProducerUnknown          = errors.New("binding references an undeclared producer")
	ErrBindingConsumerUnknown          = errors.New("binding references an undeclared consumer")
	ErrInputUnbound                    = errors.New("stage input has no binding")
	ErrInputReboundScalar              = errors.New("scalar input already has a producer")
	ErrCycleDetected                   = errors.New("pipeline graph has a cycle")
	ErrDuplicateSampleKey              = errors.New("two inputs normalize to the same sample key")
	ErrUnpairedSample                  = errors.New("input file has no pair partner")
	ErrChannelAlreadyWritten           = errors.New("channel value already written")
)

// ErrorList is just a list of errors.
// It is used to collect multiple errors in building a pipeline.
type ErrorList []error

// ToStringList returns the list of errors as a slice of strings.
func (e *ErrorList) ToStringList() []string {
	errStrings := make([]string, len(*e))
	for i, err := range *e {
		errStrings[i] = err.Error()
	}
	return errStrings
}

// Error implements the error interface.
// It returns a string with all the errors separated by a semicolon.
func (e ErrorList) Error() string {
	errStrings := make([]string, len(e))
	for i, err := range e {
		errStrings[i] = err.Error()
	}
	return strings.Join(errStrings, "; ")
}

// Unwrap implements the errors.Unwrap interface.
func (e ErrorList) Unwrap() []error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// ValidationError represents an error in a specific field of the configuration.
type ValidationError struct {
	Field string
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("field '%s': %v (value: %+v)", e.Field, e.Err, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with field context so other packages can attach
// the offending field and value to load errors.
func WrapError(field string, value any, err error) error {
	return &ValidationError{
		Field: field,
		Value: value,
		Err:   err,
	}
}

// GraphError indicates the pipeline graph is malformed: a bad binding, a
// dependency cycle, duplicate sample keys, or an unpaired input file. Graph
// errors are fatal before any instance runs.
type GraphError struct {
	// Stage is the offending stage name, empty when the defect is not
	// attributable to a single stage.
	Stage string
	Err   error
}

func (e *GraphError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("graph error: %v", e.Err)
	}
	return fmt.Sprintf("graph error: stage %s: %v", e.Stage, e.Err)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// NewGraphError wraps err as a GraphError attributed to the given stage.
func NewGraphError(stage string, err error) error {
	return &GraphError{Stage: stage, Err: err}
}

// ExecutionError indicates a stage instance failed at runtime: a non-zero
// exit code or a backend failure. Execution errors are retried per the stage
// retry policy before the instance goes Failed.
type ExecutionError struct {
	Stage    string
	Key      string
	ExitCode int
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("stage %s failed with exit code %d: %v", e.Stage, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("stage %s [%s] failed with exit code %d: %v", e.Stage, e.Key, e.ExitCode, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// OutputContractViolation indicates a stage exited successfully but a
// declared output file was not produced. It is never retried because the
// command already reported success.
type OutputContractViolation struct {
	Stage  string
	Key    string
	Output string
	Path   string
}

func (e *OutputContractViolation) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("stage %s did not produce declared output %s at %s", e.Stage, e.Output, e.Path)
	}
	return fmt.Sprintf("stage %s [%s] did not produce declared output %s at %s", e.Stage, e.Key, e.Output, e.Path)
}

// NoMatchError indicates input discovery matched no files.
type NoMatchError struct {
	Pattern string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no input files match pattern %q", e.Pattern)
}

// IsGraphError reports whether err is or wraps a GraphError.
func IsGraphError(err error) bool {
	var ge *GraphError
	return errors.As(err, &ge)
}

// IsExecutionError reports whether err is or wraps an ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// IsOutputContractViolation reports whether err is or wraps an
// OutputContractViolation.
func IsOutputContractViolation(err error) bool {
	var ov *OutputContractViolation
	return errors.As(err, &ov)
}

// IsNoMatchError reports whether err is or wraps a NoMatchError.
func IsNoMatchError(err error) bool {
	var ne *NoMatchError
	return errors.As(err, &ne)
}

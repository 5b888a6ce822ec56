package core

import (
	"fmt"
	"regexp"
	"strings"
)

// StageValidator is a function type for validating stage configurations.
type StageValidator func(stage Stage) error

// executorValidators holds registered per-executor stage validators.
var executorValidators = make(map[string]StageValidator)

// RegisterStageValidator registers a validator for an executor type.
// Executors register their validators at init time.
func RegisterStageValidator(executorType string, validator StageValidator) {
	executorValidators[executorType] = validator
}

// ValidateStages checks structural stage invariants during pipeline construction.
func ValidateStages(p *Pipeline) error {
	stageNames := make(map[string]struct{})

	for _, stage := range p.Stages {
		if stage.Name == "" {
			return WrapError("stages", stage, ErrStageNameRequired)
		}

		if _, exists := stageNames[stage.Name]; exists {
			return WrapError("stages", stage.Name, ErrStageNameDuplicate)
		}
		stageNames[stage.Name] = struct{}{}

		if len(stage.Name) > maxStageNameLen {
			return WrapError("stages", stage.Name, ErrStageNameTooLong)
		}

		if !isValidStageName(stage.Name) {
			return WrapError("stages", stage.Name, fmt.Errorf("invalid stage name format: must match pattern ^[a-zA-Z][a-zA-Z0-9_-]*$"))
		}

		if isReservedWord(stage.Name) {
			return WrapError("stages", stage.Name, fmt.Errorf("stage name '%s' is a reserved word", stage.Name))
		}
	}

	for _, stage := range p.Stages {
		if err := validateStage(stage); err != nil {
			return err
		}
	}

	return nil
}

func validateStage(stage Stage) error {
	paramNames := make(map[string]struct{})
	for _, param := range stage.Params {
		if param.Name == "" {
			return WrapError("params", param, ErrParamNameRequired)
		}
		if _, exists := paramNames[param.Name]; exists {
			return WrapError("params", param.Name, ErrParamNameDuplicate)
		}
		paramNames[param.Name] = struct{}{}

		if !param.Kind.Valid() {
			return WrapError("params", string(param.Kind), fmt.Errorf("%w: %q", ErrUnknownParamKind, param.Kind))
		}
	}

	outputNames := make(map[string]struct{})
	for _, output := range stage.Outputs {
		if output.Name == "" {
			return WrapError("outputs", output, ErrOutputNameRequired)
		}
		if _, exists := outputNames[output.Name]; exists {
			return WrapError("outputs", output.Name, ErrOutputNameDuplicate)
		}
		outputNames[output.Name] = struct{}{}

		if _, exists := paramNames[output.Name]; exists {
			return WrapError("outputs", output.Name, fmt.Errorf("output '%s' conflicts with a param of the same name", output.Name))
		}

		if output.Path == "" {
			return WrapError("outputs", output.Name, ErrOutputPathRequired)
		}
	}

	if stage.ExecutorConfig.IsCommand() && stage.Command == "" {
		return WrapError("command", stage.Name, ErrStageCommandIsRequired)
	}

	if stage.Command != "" && !stage.ExecutorConfig.IsCommand() && !SupportsCommand(stage.ExecutorConfig.Type) {
		return WrapError("command", stage.Name, fmt.Errorf("executor %q does not run a command", stage.ExecutorConfig.Type))
	}

	if stage.CacheMode != "" && !stage.CacheMode.Valid() {
		return WrapError("cacheMode", string(stage.CacheMode), fmt.Errorf("%w: %q", ErrUnknownCacheMode, stage.CacheMode))
	}

	if err := validateRetryPolicy(stage.RetryPolicy); err != nil {
		return WrapError("retryPolicy", stage.Name, err)
	}

	return validateStageWithValidator(stage)
}

func validateRetryPolicy(policy RetryPolicy) error {
	if policy.Limit < 0 {
		return fmt.Errorf("retry limit must be >= 0, got %d", policy.Limit)
	}
	if policy.Interval < 0 {
		return fmt.Errorf("retry interval must be >= 0, got %s", policy.Interval)
	}
	if policy.Backoff != 0 && policy.Backoff < 1.0 {
		return fmt.Errorf("retry backoff must be >= 1.0, got %v", policy.Backoff)
	}
	return nil
}

func validateStageWithValidator(stage Stage) error {
	validator, exists := executorValidators[stage.ExecutorConfig.Type]
	if !exists || validator == nil {
		return nil
	}
	if err := validator(stage); err != nil {
		return WrapError("executorConfig", stage.ExecutorConfig, err)
	}
	return nil
}

// ValidateBindings checks that every binding references declared stages,
// params, and outputs, and that each input has exactly one producer.
func ValidateBindings(p *Pipeline) error {
	producerCount := make(map[string]int)

	for _, binding := range p.Bindings {
		consumer, err := ParseConsumerRef(binding.Consumer)
		if err != nil {
			return NewGraphError("", err)
		}

		stage, ok := p.Stage(consumer.Scope)
		if !ok {
			return NewGraphError(consumer.Scope, fmt.Errorf("%w: %s", ErrBindingConsumerUnknown, binding.Consumer))
		}
		param, ok := stage.Param(consumer.Name)
		if !ok {
			return NewGraphError(consumer.Scope, fmt.Errorf("%w: %s", ErrBindingConsumerUnknown, binding.Consumer))
		}

		producer, err := ParseProducerRef(binding.Producer)
		if err != nil {
			return NewGraphError(consumer.Scope, err)
		}

		switch {
		case producer.IsSamples():
			if !param.Kind.IsFileBacked() || param.Kind == ParamKindCollection {
				return NewGraphError(consumer.Scope, fmt.Errorf("samples can only bind file or file-pair params, %s is %s", consumer, param.Kind))
			}
		case producer.IsParams():
			if _, ok := p.Params[producer.Name]; !ok {
				return NewGraphError(consumer.Scope, fmt.Errorf("%w: %s", ErrBindingProducerUnknown, binding.Producer))
			}
		default:
			upstream, ok := p.Stage(producer.Scope)
			if !ok {
				return NewGraphError(consumer.Scope, fmt.Errorf("%w: %s", ErrBindingProducerUnknown, binding.Producer))
			}
			if _, ok := upstream.Output(producer.Name); !ok {
				return NewGraphError(consumer.Scope, fmt.Errorf("%w: %s", ErrBindingProducerUnknown, binding.Producer))
			}
		}

		if binding.Collect && param.Kind != ParamKindCollection {
			return NewGraphError(consumer.Scope, fmt.Errorf("collect binding requires a collection param, %s is %s", consumer, param.Kind))
		}
		if !binding.Collect && param.Kind == ParamKindCollection {
			return NewGraphError(consumer.Scope, fmt.Errorf("collection param %s requires a collect binding", consumer))
		}

		producerCount[consumer.String()]++
	}

	for _, stage := range p.Stages {
		for _, param := range stage.Params {
			ref := Ref{Scope: stage.Name, Name: param.Name}
			count := producerCount[ref.String()]
			switch {
			case count == 0 && param.Kind == ParamKindValue:
				// Value params fall back to run-level params or their default.
			case count == 0:
				return NewGraphError(stage.Name, fmt.Errorf("%w: %s", ErrInputUnbound, ref))
			case count > 1:
				return NewGraphError(stage.Name, fmt.Errorf("%w: %s has %d producers", ErrInputReboundScalar, ref, count))
			}
		}
	}

	return nil
}

// maxStageNameLen is the maximum length of a stage name.
const maxStageNameLen = 40

// stageNamePattern defines the valid format for stage names. Dots are
// excluded so binding references stay unambiguous.
var stageNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// isValidStageName checks if the given name matches the required pattern.
func isValidStageName(name string) bool {
	return stageNamePattern.MatchString(name)
}

// isReservedWord checks if the given name collides with a binding scope.
func isReservedWord(name string) bool {
	reservedWords := map[string]bool{
		ProducerSamples: true,
		ProducerParams:  true,
		"key":           true,
		"outputs":       true,
	}
	return reservedWords[strings.ToLower(name)]
}

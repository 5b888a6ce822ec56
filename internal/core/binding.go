package core

import (
	"fmt"
	"strings"
)

// Producer scopes recognized in binding references.
const (
	// ProducerSamples binds an input to the discovered sample set.
	ProducerSamples = "samples"
	// ProducerParams binds an input to a run-level parameter value.
	ProducerParams = "params"
)

// Binding wires a producer to a consumer input.
//
// Producer takes one of three forms: "samples" for the discovered sample
// set, "params.name" for a run-level value, or "stage.output" for another
// stage's declared output. Consumer is always "stage.param".
type Binding struct {
	Producer string `json:"producer"`
	Consumer string `json:"consumer"`
	// Collect gathers every keyed value of the producer into a single
	// slice, making the consumer a fan-in point.
	Collect bool `json:"collect,omitempty"`
}

func (b Binding) String() string {
	if b.Collect {
		return fmt.Sprintf("%s =collect=> %s", b.Producer, b.Consumer)
	}
	return fmt.Sprintf("%s => %s", b.Producer, b.Consumer)
}

// Ref is a parsed binding reference.
type Ref struct {
	// Scope is the stage name, or one of the producer scope constants.
	Scope string
	// Name is the output or param name. Empty for the samples scope.
	Name string
}

func (r Ref) String() string {
	if r.Name == "" {
		return r.Scope
	}
	return r.Scope + "." + r.Name
}

// IsSamples reports whether the reference names the discovered sample set.
func (r Ref) IsSamples() bool {
	return r.Scope == ProducerSamples
}

// IsParams reports whether the reference names a run-level parameter.
func (r Ref) IsParams() bool {
	return r.Scope == ProducerParams
}

// ParseProducerRef parses the producer side of a binding.
func ParseProducerRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == ProducerSamples {
		return Ref{Scope: ProducerSamples}, nil
	}
	return parseDottedRef(s)
}

// ParseConsumerRef parses the consumer side of a binding. Consumers are
// always stage.param references.
func ParseConsumerRef(s string) (Ref, error) {
	ref, err := parseDottedRef(strings.TrimSpace(s))
	if err != nil {
		return Ref{}, err
	}
	if ref.Scope == ProducerSamples || ref.Scope == ProducerParams {
		return Ref{}, fmt.Errorf("%w: %q", ErrBindingMalformed, s)
	}
	return ref, nil
}

func parseDottedRef(s string) (Ref, error) {
	scope, name, ok := strings.Cut(s, ".")
	if !ok || scope == "" || name == "" {
		return Ref{}, fmt.Errorf("%w: %q", ErrBindingMalformed, s)
	}
	return Ref{Scope: scope, Name: name}, nil
}

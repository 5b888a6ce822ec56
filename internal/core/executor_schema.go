package core

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/jsonschema-go/jsonschema"
)

// executorSchemaRegistry holds registered JSON schemas for executor configs.
type executorSchemaRegistry struct {
	mu      sync.RWMutex
	entries map[string]*schemaEntry
}

type schemaEntry struct {
	schema      *jsonschema.Schema
	resolved    atomic.Pointer[jsonschema.Resolved]
	resolveOnce sync.Once
	resolveErr  error
}

var executorSchemas = &executorSchemaRegistry{
	entries: make(map[string]*schemaEntry),
}

// RegisterExecutorConfigType registers a JSON schema for an executor.
// The schema is inferred from the Go struct type T.
// Panics if the schema cannot be inferred (e.g., cyclic types).
func RegisterExecutorConfigType[T any](executorType string) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("failed to infer schema for executor %s: %v", executorType, err))
	}
	executorSchemas.mu.Lock()
	defer executorSchemas.mu.Unlock()
	executorSchemas.entries[executorType] = &schemaEntry{schema: schema}
}

// ExecutorConfigSchema returns the registered schema for an executor type.
func ExecutorConfigSchema(executorType string) (*jsonschema.Schema, bool) {
	executorSchemas.mu.RLock()
	defer executorSchemas.mu.RUnlock()
	entry, ok := executorSchemas.entries[executorType]
	if !ok {
		return nil, false
	}
	return entry.schema, true
}

// ExecutorTypesWithSchema returns the executor types that registered a schema.
func ExecutorTypesWithSchema() []string {
	executorSchemas.mu.RLock()
	defer executorSchemas.mu.RUnlock()
	types := make([]string, 0, len(executorSchemas.entries))
	for executorType := range executorSchemas.entries {
		types = append(types, executorType)
	}
	return types
}

// ValidateExecutorConfig validates config against the registered schema.
// Returns nil if no schema is registered.
func ValidateExecutorConfig(executorType string, config map[string]any) error {
	executorSchemas.mu.RLock()
	entry, ok := executorSchemas.entries[executorType]
	executorSchemas.mu.RUnlock()

	if !ok {
		return nil
	}

	resolved, err := entry.getResolved()
	if err != nil {
		return fmt.Errorf("schema error for %s: %w", executorType, err)
	}

	if err := resolved.Validate(config); err != nil {
		return fmt.Errorf("invalid %s config: %w", executorType, err)
	}

	return nil
}

func (e *schemaEntry) getResolved() (*jsonschema.Resolved, error) {
	e.resolveOnce.Do(func() {
		resolved, err := e.schema.Resolve(&jsonschema.ResolveOptions{
			ValidateDefaults: true,
		})
		if err != nil {
			e.resolveErr = err
			return
		}
		e.resolved.Store(resolved)
	})

	if e.resolveErr != nil {
		return nil, e.resolveErr
	}
	return e.resolved.Load(), nil
}

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/fileutil"
)

// Errors for loading pipelines.
var (
	ErrNameOrPathRequired = errors.New("name or path is required")
)

// LoadOptions contains options for loading a pipeline.
type LoadOptions struct {
	name         string // Name of the pipeline.
	baseConfig   string // Path to the base pipeline configuration file.
	noEval       bool   // Flag to disable evaluation of dynamic fields.
	onlyMetadata bool   // Flag to load only metadata without stage details.
}

// LoadOption is a function type for setting LoadOptions.
type LoadOption func(*LoadOptions)

// WithBaseConfig sets the base pipeline configuration file. Its fields are
// merged under the loaded pipeline.
func WithBaseConfig(base string) LoadOption {
	return func(o *LoadOptions) {
		o.baseConfig = base
	}
}

// WithName sets the name used when the file does not define one.
func WithName(name string) LoadOption {
	return func(o *LoadOptions) {
		o.name = name
	}
}

// WithoutEval disables the evaluation of dynamic fields.
func WithoutEval() LoadOption {
	return func(o *LoadOptions) {
		o.noEval = true
	}
}

// OnlyMetadata sets the flag to load only metadata.
func OnlyMetadata() LoadOption {
	return func(o *LoadOptions) {
		o.onlyMetadata = true
	}
}

// Load loads a pipeline from a file path or name. Relative paths resolve
// against the working directory; the .yaml extension is optional.
func Load(ctx context.Context, nameOrPath string, opts ...LoadOption) (*core.Pipeline, error) {
	if nameOrPath == "" {
		return nil, ErrNameOrPathRequired
	}
	var options LoadOptions
	for _, opt := range opts {
		opt(&options)
	}
	buildContext := BuildContext{
		ctx: ctx,
		opts: BuildOpts{
			Base:         options.baseConfig,
			Name:         options.name,
			OnlyMetadata: options.onlyMetadata,
			NoEval:       options.noEval,
		},
	}
	return loadPipeline(buildContext, nameOrPath)
}

// LoadYAML loads a pipeline from raw YAML data.
func LoadYAML(ctx context.Context, data []byte, opts ...LoadOption) (*core.Pipeline, error) {
	var options LoadOptions
	for _, opt := range opts {
		opt(&options)
	}
	buildContext := BuildContext{
		ctx: ctx,
		opts: BuildOpts{
			Base:         options.baseConfig,
			Name:         options.name,
			OnlyMetadata: options.onlyMetadata,
			NoEval:       options.noEval,
		},
	}

	raw, err := unmarshalData(data)
	if err != nil {
		return nil, core.ErrorList{err}
	}
	def, err := decode(raw)
	if err != nil {
		return nil, core.ErrorList{err}
	}
	return buildWithBase(buildContext, def)
}

func loadPipeline(ctx BuildContext, nameOrPath string) (*core.Pipeline, error) {
	filePath, err := resolveYamlFilePath(nameOrPath)
	if err != nil {
		return nil, err
	}
	ctx = ctx.WithFile(filePath)

	raw, err := readYAMLFile(filePath)
	if err != nil {
		return nil, err
	}
	def, err := decode(raw)
	if err != nil {
		return nil, core.ErrorList{err}
	}
	return buildWithBase(ctx, def)
}

// buildWithBase builds the pipeline, merging it over the base configuration
// when one is configured. The base is optional; a missing file is not an
// error.
func buildWithBase(ctx BuildContext, def *definition) (*core.Pipeline, error) {
	var base *core.Pipeline
	if !ctx.opts.OnlyMetadata && ctx.opts.Base != "" && fileutil.FileExists(ctx.opts.Base) {
		raw, err := readYAMLFile(ctx.opts.Base)
		if err != nil {
			return nil, fmt.Errorf("failed to read base config: %w", err)
		}
		baseDef, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base config: %w", err)
		}
		baseCtx := ctx.WithOpts(BuildOpts{NoEval: ctx.opts.NoEval}).WithFile(ctx.opts.Base)
		base, err = buildPipeline(baseCtx, baseDef)
		if err != nil {
			return nil, fmt.Errorf("failed to build base config: %w", err)
		}
	}

	p, err := buildPipeline(ctx, def)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return p, nil
	}

	merged := base
	if err := merge(merged, p); err != nil {
		return nil, fmt.Errorf("failed to merge base config: %w", err)
	}
	merged.Location = p.Location
	merged.Name = p.Name
	return merged, nil
}

// defaultName returns the filename without the extension.
func defaultName(file string) string {
	if file == "" {
		return ""
	}
	return strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
}

// resolveYamlFilePath resolves the pipeline file path. A name without an
// extension gets ".yaml" appended.
func resolveYamlFilePath(file string) (string, error) {
	file = strings.TrimSpace(file)
	if file == "" {
		return "", ErrNameOrPathRequired
	}

	if strings.HasPrefix(file, "~") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			file = strings.Replace(file, "~", homeDir, 1)
		}
	}

	if !strings.HasSuffix(file, ".yaml") && !strings.HasSuffix(file, ".yml") {
		if abs, err := filepath.Abs(file); err == nil && fileutil.FileExists(abs) {
			return abs, nil
		}
		file += ".yaml"
	}
	return filepath.Abs(file)
}

type mergeTransformer struct{}

var _ mergo.Transformers = (*mergeTransformer)(nil)

func (*mergeTransformer) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	// Env-style []string fields append instead of replacing, so the base
	// config's entries survive the merge.
	if typ == reflect.TypeOf([]string{}) {
		return func(dst, src reflect.Value) error {
			if !dst.CanSet() || src.Len() == 0 {
				return nil
			}
			dst.Set(reflect.AppendSlice(dst, src))
			return nil
		}
	}
	return nil
}

// readYAMLFile reads the contents of the file into a map.
func readYAMLFile(file string) (map[string]any, error) {
	data, err := os.ReadFile(file) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", file, err)
	}
	return unmarshalData(data)
}

// unmarshalData unmarshals the data into a map.
func unmarshalData(data []byte) (map[string]any, error) {
	var cm map[string]any
	err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&cm)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return cm, err
}

// decode decodes the configuration map into a definition. Unknown keys are
// errors so typos in pipeline files surface at load time.
func decode(cm map[string]any) (*definition, error) {
	c := new(definition)
	md, _ := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      c,
		TagName:     "",
	})
	err := md.Decode(cm)
	return c, err
}

// merge merges the source pipeline into the destination pipeline.
func merge(dst, src *core.Pipeline) error {
	return mergo.Merge(dst, src, mergo.WithOverride,
		mergo.WithTransformers(&mergeTransformer{}))
}

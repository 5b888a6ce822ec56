package pipeline

// definition is the raw YAML shape of a pipeline file. It is decoded with
// mapstructure (unused keys are errors) and then built into a
// core.Pipeline.
type definition struct {
	Name        string
	Description string
	// Schedule accepts a cron string or a list of cron strings.
	Schedule   any
	MinVersion string
	// Env accepts a map of name to value or a list of name=value strings.
	Env    any
	Dotenv any
	// Samples configures input discovery.
	Samples *samplesDef
	// Params holds run-level parameter defaults. Values are stringified.
	Params             map[string]any
	Stages             []stageDef
	Bindings           []bindingDef
	MaxActiveInstances int
	CacheMode          string
	RetryPolicy        *retryPolicyDef
	OutputDir          string
	WorkingDir         string
	// OTel accepts a map with enabled, endpoint, headers, insecure,
	// timeout and resource keys.
	OTel any
}

type samplesDef struct {
	Pattern    string
	PairTokens []string
	Extensions []string
	Require    bool
}

type stageDef struct {
	Name        string
	Description string
	Params      []paramDef
	Outputs     []outputDef
	Command     string
	Shell       string
	Dir         string
	// Env accepts the same shapes as the pipeline-level field.
	Env any
	// Executor accepts a type string or a {type, config} map.
	Executor     any
	RetryPolicy  *retryPolicyDef
	CacheMode    string
	Container    *containerDef
	Threads      int
	Stdout       string
	Stderr       string
	SignalOnStop string
}

type paramDef struct {
	Name string
	// Kind defaults to "value" when omitted.
	Kind    string
	Default any
}

type outputDef struct {
	Name string
	Path string
}

type bindingDef struct {
	Producer string
	Consumer string
	Collect  bool
}

type retryPolicyDef struct {
	Limit int
	// Interval and MaxInterval accept Go duration strings or bare seconds.
	Interval    any
	ExitCodes   []int
	Backoff     float64
	MaxInterval any
}

type containerDef struct {
	Image      string
	Platform   string
	Env        any
	Volumes    []string
	WorkingDir string
	Pull       string
}

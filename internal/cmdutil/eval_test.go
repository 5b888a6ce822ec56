package cmdutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalString(t *testing.T) {
	// Not parallel: the EnvFallback subtest mutates the environment.
	t.Run("BracedVariable", func(t *testing.T) {
		result, err := EvalString("trim ${reads} -o ${out}",
			WithVariables(map[string]string{"reads": "s1_R1.fq s1_R2.fq", "out": "trimmed/s1.fq"}),
			WithoutExpandEnv(),
		)
		require.NoError(t, err)
		assert.Equal(t, "trim s1_R1.fq s1_R2.fq -o trimmed/s1.fq", result)
	})

	t.Run("BareVariable", func(t *testing.T) {
		result, err := EvalString("echo $name",
			WithVariables(map[string]string{"name": "weft"}),
			WithoutExpandEnv(),
		)
		require.NoError(t, err)
		assert.Equal(t, "echo weft", result)
	})

	t.Run("FirstMapWins", func(t *testing.T) {
		result, err := EvalString("${x}",
			WithVariables(map[string]string{"x": "first"}),
			WithVariables(map[string]string{"x": "second"}),
			WithoutExpandEnv(),
		)
		require.NoError(t, err)
		assert.Equal(t, "first", result)
	})

	t.Run("EnvFallback", func(t *testing.T) {
		t.Setenv("WEFT_EVAL_TEST", "from-env")
		result, err := EvalString("${WEFT_EVAL_TEST}")
		require.NoError(t, err)
		assert.Equal(t, "from-env", result)
	})

	t.Run("UnresolvedPreserved", func(t *testing.T) {
		result, err := EvalString("trim ${reads} -o ${missing}",
			WithVariables(map[string]string{"reads": "s1.fq"}),
			WithoutExpandEnv(),
		)
		require.NoError(t, err)
		assert.Equal(t, "trim s1.fq -o ${missing}", result)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		result, err := EvalString("", WithoutExpandEnv())
		require.NoError(t, err)
		assert.Equal(t, "", result)
	})

	t.Run("QuotesPreserveSpaces", func(t *testing.T) {
		result, err := EvalString(`echo "${msg}"`,
			WithVariables(map[string]string{"msg": "a b"}),
			WithoutExpandEnv(),
		)
		require.NoError(t, err)
		assert.Equal(t, "echo a b", result)
	})
}

func TestExpandWithLookup(t *testing.T) {
	t.Parallel()

	vars := map[string]string{"key": "s1", "threads": "4"}
	lookup := func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}

	tests := []struct {
		input string
		want  string
	}{
		{"${key}", "s1"},
		{"$key", "s1"},
		{"quant_${key}.sf", "quant_s1.sf"},
		{"-p $threads ${key}", "-p 4 s1"},
		{"${unknown}", "${unknown}"},
		{"$unknown", "$unknown"},
		{"no refs", "no refs"},
		{"trailing $", "trailing $"},
		{"${unclosed", "${unclosed"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, expandWithLookup(tc.input, lookup), "input=%q", tc.input)
	}
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()

	t.Run("Simple", func(t *testing.T) {
		cmd, args, err := SplitCommand("fastqc --outdir qc input.fq")
		require.NoError(t, err)
		assert.Equal(t, "fastqc", cmd)
		assert.Equal(t, []string{"--outdir", "qc", "input.fq"}, args)
	})

	t.Run("Quoted", func(t *testing.T) {
		cmd, args, err := SplitCommand(`echo "hello world" 'single quoted'`)
		require.NoError(t, err)
		assert.Equal(t, "echo", cmd)
		assert.Equal(t, []string{"hello world", "single quoted"}, args)
	})

	t.Run("Empty", func(t *testing.T) {
		_, _, err := SplitCommand("")
		assert.ErrorIs(t, err, ErrCommandIsEmpty)
	})
}

func TestGetShellCommand(t *testing.T) {
	assert.Equal(t, "/bin/bash", GetShellCommand("/bin/bash"))
	t.Setenv("SHELL", "/usr/bin/zsh")
	assert.Equal(t, "/usr/bin/zsh", GetShellCommand(""))
}

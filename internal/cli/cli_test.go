package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
aggregator:
  call_timeout: 100ms
backends:
  simulated:
    - id: A
    - id: B
      failure_rate: 1
    - id: C
metrics:
  enabled: false
`), 0o600))
	return path
}

func TestRunFailFast(t *testing.T) {
	out, _, err := execute(t, "run", "fail-fast", "--callers", "svc-a,svc-b,svc-c", "--inputs", "x,y,z")
	require.NoError(t, err)
	assert.Equal(t, "svc-a:X svc-b:Y svc-c:Z\n", out)
}

func TestRunPoliciesWithFailingBackend(t *testing.T) {
	cfg := writeConfig(t)

	out, _, err := execute(t, "--config", cfg, "run", "fail-soft", "--callers", "A,B,C", "--inputs", "x,y,z", "--fallback", "NA")
	require.NoError(t, err)
	assert.Equal(t, "A:X NA C:Z\n", out)

	out, _, err = execute(t, "--config", cfg, "run", "fail-partial", "--callers", "A,B,C", "--inputs", "x,y,z")
	require.NoError(t, err)
	assert.Equal(t, "[A:X, C:Z]\n", out)

	_, stderr, err := execute(t, "--config", cfg, "run", "fail-fast", "--callers", "A,B", "--inputs", "x,y", "--details")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulated failure")
	assert.Contains(t, stderr, "#1 B")

	out, _, err = execute(t, "--config", cfg, "run", "completion-order", "--callers", "A,B,C", "--input", "q")
	require.NoError(t, err)
	assert.True(t, out == "[A:Q, C:Q]\n" || out == "[C:Q, A:Q]\n", out)
}

func TestRunRejectsMismatchAndUnknownPolicy(t *testing.T) {
	_, _, err := execute(t, "run", "fail-fast", "--callers", "svc-a,svc-b", "--inputs", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size mismatch")

	_, _, err = execute(t, "run", "eventually", "--callers", "svc-a", "--inputs", "x")
	require.Error(t, err)
}

func TestDemoRunsEveryPolicy(t *testing.T) {
	out, _, err := execute(t, "--config", writeConfig(t), "demo", "-m", "hi")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "fail-fast:"))
	assert.Contains(t, lines[0], "error:")
	assert.Contains(t, lines[1], "[A:HI, C:HI]")
	assert.Contains(t, lines[2], "A:HI NA C:HI")
	assert.True(t, strings.HasPrefix(lines[3], "completion-order:"))
}

func TestBackendsAndVersion(t *testing.T) {
	out, _, err := execute(t, "backends")
	require.NoError(t, err)
	assert.Equal(t, "svc-a\nsvc-b\nsvc-c\n", out)

	out, _, err = execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

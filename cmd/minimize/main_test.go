package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/descent/internal/optimization"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestRunPrintsResult(t *testing.T) {
	out, _, err := execute(t, "run",
		"--objective", "quadratic",
		"--params", "2,0,0,1",
		"--strategy", "newton",
		"--x0", "3,4",
	)
	require.NoError(t, err)

	var result optimization.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "Newton", result.Strategy)
	assert.True(t, result.Success)
	assert.True(t, result.Valid)
	assert.Equal(t, optimization.Converged, result.Status)
	assert.LessOrEqual(t, result.Iterations, 2)
	assert.InDelta(t, 0, result.Value, 1e-12)
}

func TestRunWritesTrace(t *testing.T) {
	trace := filepath.Join(t.TempDir(), "trace.jsonl")

	out, stderr, err := execute(t, "run",
		"--objective", "linear",
		"--x0", "0,0",
		"--max-iter", "4",
		"--trace", trace,
		"--log-level", "info",
	)
	require.NoError(t, err)

	var result optimization.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, optimization.IterationLimit, result.Status)
	assert.Equal(t, 4, result.Iterations)
	assert.Contains(t, stderr, "Wrote trajectory")

	f, err := os.Open(trace)
	require.NoError(t, err)
	defer f.Close()

	var records []optimization.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec optimization.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, i, rec.Iteration)
		assert.Equal(t, -2*float64(i), rec.Value)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing x0", []string{"run"}},
		{"unknown strategy", []string{"run", "--strategy", "bfgs", "--x0", "1,1"}},
		{"unknown objective", []string{"run", "--objective", "himmelblau", "--x0", "1,1"}},
		{"wrong dimension", []string{"run", "--objective", "rosenbrock", "--x0", "1,1,1"}},
		{"bad wolfe", []string{"run", "--wolfe", "1.5", "--x0", "1,1"}},
		{"bad log format", []string{"run", "--log-format", "xml", "--x0", "1,1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestCompare(t *testing.T) {
	out, _, err := execute(t, "compare", "--objective", "exponential", "--x0", "1,1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "STRATEGY"))
	assert.True(t, strings.HasPrefix(lines[1], "GradientDescent"))
	assert.True(t, strings.HasPrefix(lines[2], "Newton"))
	assert.Contains(t, lines[2], string(optimization.Converged))
}

func TestObjectives(t *testing.T) {
	out, _, err := execute(t, "objectives")
	require.NoError(t, err)
	assert.Equal(t, "exponential\nlinear\nquadratic\nrosenbrock\n", out)
}

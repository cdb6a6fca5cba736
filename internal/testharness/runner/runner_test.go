package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/cbmock/cbmock-go/internal/testharness/engine"
	"github.com/cbmock/cbmock-go/internal/testharness/loader"
	"github.com/cbmock/cbmock-go/pkg/cluster"
	"github.com/cbmock/cbmock-go/pkg/control"
	"github.com/cbmock/cbmock-go/pkg/httpio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "../../../testdata/scenarios"

func startEmulator(t *testing.T) string {
	t.Helper()

	c, err := cluster.New(cluster.Config{
		Host: "127.0.0.1",
		Buckets: []cluster.BucketConfig{
			{Name: "default", Password: "secret", Nodes: 2},
		},
	})
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Stop)

	d := control.NewDispatcher()
	control.RegisterClusterCommands(d, c)

	srv := httpio.New()
	control.NewHandler(d).Mount(srv)
	require.NoError(t, srv.Bind("127.0.0.1:0"))
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	return fmt.Sprintf("http://127.0.0.1:%d/mock", srv.Port())
}

func newRunner(t *testing.T, target string, out *bytes.Buffer) *Runner {
	t.Helper()
	r, err := New(&Config{
		Target:       target,
		TestDir:      scenarioDir,
		Timeout:      10 * time.Second,
		Output:       out,
		OutputFormat: "json",
		Variables:    map[string]any{"bucket_password": "secret"},
	})
	require.NoError(t, err)
	return r
}

func failures(res *engine.SuiteResult) []string {
	var out []string
	for _, tr := range res.Results {
		if tr.Passed || tr.Skipped {
			continue
		}
		msg := tr.Scenario.ID
		if tr.Error != nil {
			msg += ": " + tr.Error.Error()
		}
		for _, sr := range tr.StepResults {
			for _, er := range sr.ExpectResults {
				if !er.Passed {
					msg += fmt.Sprintf(" [step %d %s: %s]", sr.StepIndex, er.Key, er.Message)
				}
			}
		}
		out = append(out, msg)
	}
	return out
}

func TestRunnerRunsScenarioDirectory(t *testing.T) {
	var out bytes.Buffer
	r := newRunner(t, startEmulator(t), &out)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failures(res))
	assert.Equal(t, len(res.Results), res.PassCount)
	assert.Positive(t, res.PassCount)

	var report struct {
		Total  int `json:"total"`
		Failed int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, res.PassCount, report.Total)
	assert.Zero(t, report.Failed)
}

func TestRunnerFilters(t *testing.T) {
	target := startEmulator(t)

	t.Run("pattern", func(t *testing.T) {
		var out bytes.Buffer
		r := newRunner(t, target, &out)
		r.config.Pattern = "TC-SASL"
		res, err := r.Run(context.Background())
		require.NoError(t, err)
		assert.Len(t, res.Results, 4)
		assert.Empty(t, failures(res))
	})

	t.Run("tags", func(t *testing.T) {
		var out bytes.Buffer
		r := newRunner(t, target, &out)
		r.config.Tags = []string{"smoke"}
		res, err := r.Run(context.Background())
		require.NoError(t, err)
		assert.Len(t, res.Results, 3)
	})

	t.Run("nothing matches", func(t *testing.T) {
		var out bytes.Buffer
		r := newRunner(t, target, &out)
		r.config.Pattern = "TC-NONE"
		_, err := r.Run(context.Background())
		assert.ErrorContains(t, err, "no scenarios found")
	})
}

func TestRunnerInvalidTarget(t *testing.T) {
	_, err := New(&Config{Target: "127.0.0.1:18091"})
	assert.ErrorContains(t, err, "invalid target")

	_, err = New(&Config{Target: "http://127.0.0.1:1/mock", OutputFormat: "xml"})
	assert.Error(t, err)
}

func TestRunnerUnreachableTarget(t *testing.T) {
	var out bytes.Buffer
	r := newRunner(t, "http://127.0.0.1:1/mock", &out)
	_, err := r.Run(context.Background())
	assert.ErrorContains(t, err, "target not reachable")
}

func run(t *testing.T, r *Runner, steps ...loader.Step) *engine.TestResult {
	t.Helper()
	return r.Engine().Run(context.Background(), &loader.Scenario{ID: "TC-INLINE", Steps: steps})
}

func TestHandlersRequireConnection(t *testing.T) {
	var out bytes.Buffer
	r := newRunner(t, startEmulator(t), &out)

	res := run(t, r, loader.Step{Action: ActionSend, Params: map[string]any{"opcode": "NOOP"}})
	assert.False(t, res.Passed)
	require.Len(t, res.StepResults, 1)
	assert.ErrorContains(t, res.StepResults[0].Error, `no connection "default"`)
}

func TestHandlersRejectBadParams(t *testing.T) {
	var out bytes.Buffer
	r := newRunner(t, startEmulator(t), &out)

	tests := []struct {
		name string
		step loader.Step
		want string
	}{
		{"unknown opcode", loader.Step{Action: ActionOpfail, Params: map[string]any{"code": 134, "operation": "FLY"}}, "unknown opcode"},
		{"unknown code", loader.Step{Action: ActionOpfail, Params: map[string]any{"code": "SOMETIMES"}}, "unknown error code"},
		{"missing code", loader.Step{Action: ActionOpfail, Params: map[string]any{}}, "missing or out of range"},
		{"node range", loader.Step{Action: ActionConnect, Params: map[string]any{"node": 7}}, "out of range"},
		{"no command", loader.Step{Action: ActionControl}, "command is required"},
		{"bad duration", loader.Step{Action: ActionWait, Params: map[string]any{"duration_ms": "soon"}}, "duration_ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, r, tt.step)
			require.Len(t, res.StepResults, 1)
			assert.ErrorContains(t, res.StepResults[0].Error, tt.want)
		})
	}
}

func TestTeardownClearsFailures(t *testing.T) {
	var out bytes.Buffer
	r := newRunner(t, startEmulator(t), &out)

	res := run(t, r, loader.Step{
		Action: ActionOpfail,
		Params: map[string]any{"code": "ETMPFAIL", "count": -1},
		Expect: map[string]any{KeyStatus: "ok"},
	})
	require.True(t, res.Passed)

	res = run(t, r,
		loader.Step{Action: ActionConnect},
		loader.Step{
			Action: ActionSend,
			Params: map[string]any{"opcode": "NOOP"},
			Expect: map[string]any{KeyResponseStatus: "SUCCESS"},
		},
	)
	assert.True(t, res.Passed, failures(&engine.SuiteResult{Results: []*engine.TestResult{res}}))
}

func TestParamInt(t *testing.T) {
	p := map[string]any{"a": 3, "b": "4", "c": 2.0, "d": 2.5, "e": []int{1}}

	n, err := paramInt(p, "a", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = paramInt(p, "b", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = paramInt(p, "c", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = paramInt(p, "missing", 9)
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	_, err = paramInt(p, "d", 0)
	assert.Error(t, err)
	_, err = paramInt(p, "e", 0)
	assert.Error(t, err)
}

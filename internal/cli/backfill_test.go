package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/presence-api/internal/service"
)

type runnerStub struct {
	start, end string
	dryRun     bool
	report     *service.BackfillReport
	runErr     error
}

func (r *runnerStub) ParseRequest(start, end string, dryRun bool) (service.BackfillRequest, error) {
	r.start, r.end, r.dryRun = start, end, dryRun
	if start == "bad" {
		return service.BackfillRequest{}, errors.New("start date must be YYYY-MM-DD")
	}
	return service.BackfillRequest{Start: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), DryRun: dryRun}, nil
}

func (r *runnerStub) Run(ctx context.Context, req service.BackfillRequest) (*service.BackfillReport, error) {
	if r.runErr != nil {
		return nil, r.runErr
	}
	return r.report, nil
}

func execute(t *testing.T, runner *runnerStub, args ...string) (string, bool, error) {
	t.Helper()
	cleaned := false
	cmd := NewBackfillCommand("2025-06-01", func(ctx context.Context) (BackfillRunner, func(), error) {
		return runner, func() { cleaned = true }, nil
	})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), cleaned, err
}

func TestBackfillCommandFlags(t *testing.T) {
	cmd := NewBackfillCommand("2025-06-01", nil)

	start := cmd.Flags().Lookup("start")
	require.NotNil(t, start)
	assert.Equal(t, "2025-06-01", start.DefValue)

	end := cmd.Flags().Lookup("end")
	require.NotNil(t, end)
	assert.Equal(t, "", end.DefValue)

	dryRun := cmd.Flags().Lookup("dry-run")
	require.NotNil(t, dryRun)
	assert.Equal(t, "false", dryRun.DefValue)
}

func TestBackfillCommandPrintsReport(t *testing.T) {
	runner := &runnerStub{report: &service.BackfillReport{
		Start: "2025-06-02", End: "2025-06-02", Inserted: 1, DaysScanned: 1, Learners: 1,
		Entries: []service.BackfillEntry{{Matricule: "M1", Name: "Awa Diop", Day: "2025-06-02"}},
	}}

	out, cleaned, err := execute(t, runner, "--start", "2025-06-02", "--end", "2025-06-02")
	require.NoError(t, err)
	assert.True(t, cleaned)
	assert.Equal(t, "2025-06-02", runner.start)
	assert.Equal(t, "2025-06-02", runner.end)
	assert.Contains(t, out, "absence added for Awa Diop (M1) on 2025-06-02\n")
	assert.Contains(t, out, "done: 1 absences added")
}

func TestBackfillCommandDefaults(t *testing.T) {
	runner := &runnerStub{report: &service.BackfillReport{DryRun: true, Entries: []service.BackfillEntry{}}}

	out, _, err := execute(t, runner, "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", runner.start)
	assert.Empty(t, runner.end)
	assert.True(t, runner.dryRun)
	assert.Contains(t, out, "0 absences would be added")
}

func TestBackfillCommandFailures(t *testing.T) {
	_, cleaned, err := execute(t, &runnerStub{}, "--start", "bad")
	assert.Error(t, err)
	assert.True(t, cleaned)

	_, cleaned, err = execute(t, &runnerStub{runErr: errors.New("db down")})
	assert.EqualError(t, err, "db down")
	assert.True(t, cleaned)

	cmd := NewBackfillCommand("2025-06-01", func(ctx context.Context) (BackfillRunner, func(), error) {
		return nil, nil, errors.New("connect failed")
	})
	cmd.SetArgs([]string{})
	assert.EqualError(t, cmd.Execute(), "connect failed")

	_, _, err = execute(t, &runnerStub{}, "extra-arg")
	assert.Error(t, err)
}

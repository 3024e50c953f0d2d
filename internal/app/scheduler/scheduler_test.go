package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-subscription/internal/config"
	schedulerservice "github.com/magabrotheeeer/vpn-subscription/internal/services/scheduler"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJobs_UseConfiguredSpecs(t *testing.T) {
	cfg := config.Scheduler{SweepSpec: "@every 10m", NoticeSpec: "@hourly", PurgeSpec: "0 3 * * *"}
	jobs := Jobs(cfg, &schedulerservice.Service{})

	require.Len(t, jobs, 3)
	assert.Equal(t, "sweep", jobs[0].Name)
	assert.Equal(t, "@every 10m", jobs[0].Spec)
	assert.Equal(t, "@hourly", jobs[1].Spec)
	assert.Equal(t, "0 3 * * *", jobs[2].Spec)
}

func TestNewCron(t *testing.T) {
	noop := func(context.Context) error { return nil }

	tests := []struct {
		name    string
		jobs    []Job
		wantErr bool
	}{
		{
			name: "корректные расписания",
			jobs: []Job{{Name: "a", Spec: "@every 1m", Run: noop}, {Name: "b", Spec: "*/5 * * * *", Run: noop}},
		},
		{
			name:    "некорректное расписание",
			jobs:    []Job{{Name: "bad", Spec: "every minute", Run: noop}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := newCron(context.Background(), tt.jobs, newNoopLogger())
			if tt.wantErr {
				assert.ErrorContains(t, err, "bad")
				return
			}
			require.NoError(t, err)
			assert.Len(t, c.Entries(), len(tt.jobs))
		})
	}
}

package lifecycle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spounge-ai/auditchain/pkg/patterns/lifecycle"
)

type fakeResource struct {
	name     string
	log      *[]string
	startErr error
	healthy  bool
}

func (f *fakeResource) Start(context.Context) error {
	*f.log = append(*f.log, "start "+f.name)
	return f.startErr
}

func (f *fakeResource) Stop(context.Context) error {
	*f.log = append(*f.log, "stop "+f.name)
	return nil
}

func (f *fakeResource) Health(context.Context) lifecycle.HealthStatus {
	return lifecycle.HealthStatus{Ready: f.healthy}
}

func TestGroupOrdering(t *testing.T) {
	var log []string
	g := lifecycle.NewGroup()
	g.Add("a", &fakeResource{name: "a", log: &log, healthy: true})
	g.Add("b", &fakeResource{name: "b", log: &log, healthy: true})

	require.NoError(t, g.Start(context.Background()))
	ready, statuses := g.Health(context.Background())
	assert.True(t, ready)
	assert.Len(t, statuses, 2)

	require.NoError(t, g.Stop(context.Background()))
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
}

func TestGroupStartFailureRollsBack(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	g := lifecycle.NewGroup(
		lifecycle.Named{Name: "a", Resource: &fakeResource{name: "a", log: &log}},
		lifecycle.Named{Name: "b", Resource: &fakeResource{name: "b", log: &log, startErr: boom}},
	)

	err := g.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start a", "start b", "stop a"}, log)

	ready, _ := g.Health(context.Background())
	assert.False(t, ready)
}

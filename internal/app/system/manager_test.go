package system

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	name      string
	failStart bool
	log       *[]string
}

func (r recordingService) Name() string { return r.name }

func (r recordingService) Start(ctx context.Context) error {
	if r.failStart {
		return fmt.Errorf("boom")
	}
	*r.log = append(*r.log, "start:"+r.name)
	return nil
}

func (r recordingService) Stop(ctx context.Context) error {
	*r.log = append(*r.log, "stop:"+r.name)
	return nil
}

func TestManagerStartStopOrder(t *testing.T) {
	var log []string
	m := NewManager()
	require.NoError(t, m.Register(recordingService{name: "a", log: &log}))
	require.NoError(t, m.Register(recordingService{name: "b", log: &log}))

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, []string{"start:a", "start:b"}, log)

	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, log)

	// Stop is idempotent.
	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, log)
}

func TestManagerStartRollsBackOnFailure(t *testing.T) {
	var log []string
	m := NewManager()
	require.NoError(t, m.Register(recordingService{name: "a", log: &log}))
	require.NoError(t, m.Register(recordingService{name: "b", failStart: true, log: &log}))

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"start:a", "stop:a"}, log)
}

func TestManagerRejectsDuplicateNames(t *testing.T) {
	var log []string
	m := NewManager()
	require.NoError(t, m.Register(recordingService{name: "a", log: &log}))
	err := m.Register(recordingService{name: "a", log: &log})
	assert.Error(t, err)
}

func TestNoopServiceLifecycle(t *testing.T) {
	svc := NoopService{ServiceName: "placeholder"}
	assert.Equal(t, "placeholder", svc.Name())
	assert.NoError(t, svc.Start(context.Background()))
	assert.NoError(t, svc.Stop(context.Background()))
}

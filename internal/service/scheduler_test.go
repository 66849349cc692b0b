package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smsportal/internal/gateway"
	"smsportal/internal/models"
)

func TestSchedulerRunsBothCycles(t *testing.T) {
	now := time.Now().UTC()
	repo := &stubRepo{scheduled: []models.ScheduledMessage{
		{ID: 1, Sender: "jdoe", Recipient: "+5551110002", Body: "due", ScheduledFor: now.Add(-time.Minute)},
	}}
	gw := &stubGateway{
		sendID: "ext-1",
		received: []gateway.RawMessage{{
			"id": "gw-1", "from": "5551110001", "to": "5559990000", "message": "hi",
		}},
	}
	svc := newTestService(repo, gw, &stubCache{}, nil)
	sch := NewScheduler(svc, 10*time.Millisecond, 20*time.Millisecond, zap.NewNop().Sugar())

	require.NoError(t, sch.Start())
	assert.True(t, sch.IsRunning())

	assert.Eventually(t, func() bool {
		return gw.sendCount() > 0 && repo.messageCount() >= 2
	}, 2*time.Second, 10*time.Millisecond, "both cycles should have fired")

	require.NoError(t, sch.Stop())
	assert.False(t, sch.IsRunning())
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	svc := newTestService(&stubRepo{}, &stubGateway{}, &stubCache{}, nil)
	sch := NewScheduler(svc, time.Hour, time.Hour, zap.NewNop().Sugar())

	require.NoError(t, sch.Start())
	require.NoError(t, sch.Start())
	assert.True(t, sch.IsRunning())

	require.NoError(t, sch.Stop())
	require.NoError(t, sch.Stop())
	assert.False(t, sch.IsRunning())
}

func TestSchedulerSurvivesFailingCycles(t *testing.T) {
	gw := &stubGateway{
		receivedErr: assert.AnError,
		allErr:      assert.AnError,
	}
	svc := newTestService(&stubRepo{}, gw, &stubCache{}, nil)
	sch := NewScheduler(svc, 5*time.Millisecond, time.Hour, zap.NewNop().Sugar())

	require.NoError(t, sch.Start())
	time.Sleep(50 * time.Millisecond)
	assert.True(t, sch.IsRunning(), "failed fetches never kill the loop")
	require.NoError(t, sch.Stop())
}

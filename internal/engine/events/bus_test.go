package events

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DrainReturnsFIFOAndEmpties(t *testing.T) {
	bus := NewBus()
	bus.Publish(JobAddedMsg{JobID: 1, Title: "Preparing..."})
	bus.Publish(ProgressMsg{JobID: 1, Percent: 40})
	bus.Publish(JobCompletedMsg{JobID: 1, Path: "/tmp/x.mp4"})

	got := bus.Drain()
	require.Len(t, got, 3)
	assert.Equal(t, KindJobAdded, got[0].Kind())
	assert.Equal(t, KindProgress, got[1].Kind())
	assert.Equal(t, KindJobCompleted, got[2].Kind())

	assert.Empty(t, bus.Drain(), "second drain should be empty")
}

func TestBus_SubscribersSeeSameOrder(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()

	for i := 0; i < 50; i++ {
		bus.Publish(ProgressMsg{JobID: 1, Percent: i})
	}

	def := bus.Drain()
	mine := sub.Drain()
	require.Len(t, def, 50)
	require.Len(t, mine, 50)
	for i := range def {
		assert.Equal(t, def[i], mine[i])
		assert.Equal(t, i, mine[i].(ProgressMsg).Percent)
	}

	bus.Unsubscribe(sub)
	bus.Publish(JobCancelledMsg{JobID: 1})
	assert.Empty(t, sub.Drain())
	assert.Len(t, bus.Drain(), 1)
}

func TestBus_ConcurrentPublishKeepsPerProducerOrder(t *testing.T) {
	bus := NewBus()
	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				bus.Publish(ProgressMsg{JobID: id, Percent: i})
			}
		}(int64(p))
	}
	wg.Wait()

	last := make(map[int64]int)
	all := bus.Drain()
	require.Len(t, all, producers*perProducer)
	for _, e := range all {
		pct := e.(ProgressMsg).Percent
		if prev, ok := last[e.ID()]; ok {
			assert.Greater(t, pct, prev, "job %d events out of order", e.ID())
		}
		last[e.ID()] = pct
	}
}

func TestQueue_NotifyFiresOnPush(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()

	bus.Publish(StatusChangedMsg{JobID: 3, Text: "finalizing"})
	select {
	case <-sub.Notify():
	default:
		t.Fatal("expected notification after publish")
	}
	assert.Equal(t, 1, sub.Len())
}

func TestEnvelope_JSON(t *testing.T) {
	data, err := json.Marshal(Wrap(JobFailedMsg{JobID: 9, Reason: "HTTP Error 404"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"failed","job_id":9,"event":{"job_id":9,"reason":"HTTP Error 404"}}`, string(data))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(JobCompletedMsg{}))
	assert.True(t, IsTerminal(JobFailedMsg{}))
	assert.True(t, IsTerminal(JobCancelledMsg{}))
	assert.False(t, IsTerminal(ProgressMsg{}))
	assert.False(t, IsTerminal(StatusChangedMsg{}))
}

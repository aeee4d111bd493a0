package monitoring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCollector_Counters(t *testing.T) {
	mc := NewMetricsCollector()

	mc.RecordRequest(true)
	mc.RecordRequest(true)
	mc.RecordRequest(false)
	mc.RecordDryRun()
	mc.RecordStream()
	mc.RecordSession(false)
	mc.RecordSession(true)
	mc.RecordSession(true)
	mc.RecordSessionConflict()
	mc.RecordTokens(10, 4)
	mc.RecordTokens(5, 6)

	s := mc.GetSnapshot()
	assert.EqualValues(t, 3, s.Requests)
	assert.EqualValues(t, 2, s.Successes)
	assert.EqualValues(t, 1, s.UpstreamFailures)
	assert.EqualValues(t, 1, s.DryRunRequests)
	assert.EqualValues(t, 1, s.StreamedRequests)
	assert.EqualValues(t, 1, s.SessionsCreated)
	assert.EqualValues(t, 2, s.SessionsReused)
	assert.EqualValues(t, 1, s.SessionConflicts)
	assert.EqualValues(t, 15, s.PromptTokens)
	assert.EqualValues(t, 10, s.CompletionTokens)
}

func TestMetricsCollector_ConcurrentRecording(t *testing.T) {
	mc := NewMetricsCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mc.RecordRequest(true)
			mc.RecordTokens(1, 1)
		}()
	}
	wg.Wait()

	s := mc.GetSnapshot()
	assert.EqualValues(t, 50, s.Requests)
	assert.EqualValues(t, 50, s.Successes)
	assert.EqualValues(t, 50, s.PromptTokens)
}

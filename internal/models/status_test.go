package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{StatusDiscovered, StatusProcessing, true},
		{StatusProcessing, StatusReady, true},
		{StatusProcessing, StatusDiscovered, true},
		{StatusDiscovered, StatusReady, true},
		{StatusDiscovered, StatusSkipped, true},
		{StatusReady, StatusSkipped, true},
		{StatusReady, StatusApplied, true},
		{StatusApplied, StatusInProgress, true},
		{StatusApplied, StatusSkipped, false},
		{StatusReady, StatusReady, false},
		{StatusSkipped, StatusDiscovered, false},
		{StatusProcessing, StatusSkipped, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestJobStatusValid(t *testing.T) {
	assert.True(t, StatusInProgress.Valid())
	assert.False(t, JobStatus("archived").Valid())
}

func TestRunStatusTerminal(t *testing.T) {
	assert.False(t, RunRunning.Terminal())
	assert.True(t, RunCompleted.Terminal())
	assert.True(t, RunCancelled.Terminal())
	assert.True(t, RunFailed.Terminal())
}

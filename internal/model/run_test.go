package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRun(t *testing.T) {
	r := NewRun(PipelineNDWI)
	_, err := uuid.Parse(r.ID)
	require.NoError(t, err)
	assert.Equal(t, PipelineNDWI, r.Pipeline)
	assert.Equal(t, RunStatusRunning, r.Status)
	assert.False(t, r.Started.IsZero())
}

func TestRunSummary_Finish(t *testing.T) {
	ok := NewRun(PipelineSimulate)
	ok.Finish(nil)
	assert.Equal(t, RunStatusComplete, ok.Status)
	assert.Empty(t, ok.Error)

	failed := NewRun(PipelineLoss)
	failed.Finish(eris.Wrap(ErrSchemaMismatch, "buildings"))
	assert.Equal(t, RunStatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "schema mismatch")
}

func TestErrorsMatchThroughWrap(t *testing.T) {
	err := eris.Wrapf(ErrShapeMismatch, "layer %d", 2)
	assert.True(t, eris.Is(err, ErrShapeMismatch))
	assert.False(t, eris.Is(err, ErrWeightLengthMismatch))
}

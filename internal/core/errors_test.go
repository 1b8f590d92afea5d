package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataSourceError(t *testing.T) {
	assert.Nil(t, NewDataSourceError("segments", nil))

	cause := errors.New("connection reset")
	err := NewDataSourceError("segments", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "data source: segments: connection reset", err.Error())

	var dse *DataSourceError
	assert.True(t, errors.As(err, &dse))
	assert.Equal(t, "segments", dse.Op)

	// already wrapped errors keep their original op
	again := NewDataSourceError("expenses", err)
	assert.Same(t, err, again)
}

func TestPartialAggregationFailure(t *testing.T) {
	cause := errors.New("timeout")
	err := &PartialAggregationFailure{
		Failures: []ProjectFailure{
			{ProjectID: "p2", Name: "Obra B", Err: NewDataSourceError("expenses", cause)},
			{ProjectID: "p3", Name: "Obra C"},
		},
		Summaries: []ProjectFinancialSummary{{ProjectID: "p1"}},
	}

	assert.Equal(t, []string{"p2", "p3"}, err.FailedProjectIDs())
	assert.Contains(t, err.Error(), "2 project(s) failed")
	assert.ErrorIs(t, err, cause)

	var dse *DataSourceError
	assert.True(t, errors.As(err, &dse))
	assert.Equal(t, "", err.Failures[1].Reason())
}

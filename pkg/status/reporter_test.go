package status

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPicksReporterByMode(t *testing.T) {
	assert.IsType(t, &LogReporter{}, New(true))
	assert.IsType(t, &NoOpReporter{}, New(false))
}

func TestLogReporterDropsRepeatedPercent(t *testing.T) {
	r := NewLogReporter()
	require.NoError(t, r.Start(context.Background()))

	r.Percent(10)
	r.Percent(10)
	assert.Equal(t, 10, r.last)
	r.Percent(-1)
	assert.Equal(t, -1, r.last)

	r.Message("Install")
	r.Detail("copy files")
	r.Error(errors.New("boom"))
	r.Stop()
	assert.False(t, r.started)
}

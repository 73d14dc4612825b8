package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/internal/apperr"
)

func TestLogGroupStreamEvents(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateLogGroup("/app/api")
	require.NoError(t, err)
	_, err = e.CreateLogGroup("/app/api")
	assert.True(t, apperr.Is(err, apperr.KindAlreadyExists))

	_, err = e.CreateLogStream("/app/api", "instance-1")
	require.NoError(t, err)

	err = e.PutLogEvents("/app/api", "instance-1", []LogEvent{
		{Timestamp: 2000, Message: "second"},
		{Timestamp: 1000, Message: "first"},
	})
	require.NoError(t, err)

	got, err := e.GetLogEvents("/app/api", "instance-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Message)
	assert.Equal(t, "second", got[1].Message)
}

func TestPutLogEventsMissingStream(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateLogGroup("/app/api")
	require.NoError(t, err)

	err = e.PutLogEvents("/app/api", "no-stream", []LogEvent{{Timestamp: 1, Message: "m"}})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestFilterLogEvents(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateLogGroup("/app/api")
	require.NoError(t, err)
	_, err = e.CreateLogStream("/app/api", "s1")
	require.NoError(t, err)
	_, err = e.CreateLogStream("/app/api", "s2")
	require.NoError(t, err)
	require.NoError(t, e.PutLogEvents("/app/api", "s1", []LogEvent{{Timestamp: 1, Message: "ERROR boom"}}))
	require.NoError(t, e.PutLogEvents("/app/api", "s2", []LogEvent{{Timestamp: 2, Message: "INFO fine"}}))

	errs, err := e.FilterLogEvents("/app/api", "ERROR", 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "s1", errs[0].StreamName)

	all, err := e.FilterLogEvents("/app/api", "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteLogGroupCascades(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateLogGroup("/app/api")
	require.NoError(t, err)
	_, err = e.CreateLogStream("/app/api", "s1")
	require.NoError(t, err)
	require.NoError(t, e.PutLogEvents("/app/api", "s1", []LogEvent{{Timestamp: 1, Message: "m"}}))

	require.NoError(t, e.DeleteLogGroup("/app/api"))
	_, err = e.GetLogGroup("/app/api")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	groups, err := e.ListLogGroups("/app/")
	require.NoError(t, err)
	assert.Empty(t, groups)
}

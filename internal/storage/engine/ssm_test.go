package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/internal/apperr"
)

func TestParameterVersioning(t *testing.T) {
	e, _, _ := newTestEngine(t)

	p, err := e.PutParameter("/app/db/host", "String", "localhost", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Version)

	// Overwrite required for an existing name.
	_, err = e.PutParameter("/app/db/host", "String", "db.internal", false)
	assert.True(t, apperr.Is(err, apperr.KindAlreadyExists))

	p2, err := e.PutParameter("/app/db/host", "SecureString", "db.internal", true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p2.Version)

	got, err := e.GetParameter("/app/db/host")
	require.NoError(t, err)
	assert.Equal(t, "db.internal", got.Value)
	assert.Equal(t, "SecureString", got.Type)
}

func TestGetParametersPartial(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.PutParameter("/a", "", "1", false)
	require.NoError(t, err)

	found, missing, err := e.GetParameters([]string{"/a", "/b"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "/a", found[0].Name)
	assert.Equal(t, []string{"/b"}, missing)
}

func TestDescribeParametersPrefix(t *testing.T) {
	e, _, _ := newTestEngine(t)
	for _, name := range []string{"/app/a", "/app/b", "/other/c"} {
		_, err := e.PutParameter(name, "", "v", false)
		require.NoError(t, err)
	}

	scoped, err := e.DescribeParameters("/app/")
	require.NoError(t, err)
	assert.Len(t, scoped, 2)

	all, err := e.DescribeParameters("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteParameter(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.PutParameter("/p", "", "v", false)
	require.NoError(t, err)

	require.NoError(t, e.DeleteParameter("/p"))
	err = e.DeleteParameter("/p")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

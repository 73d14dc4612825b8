package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/internal/apperr"
)

func strPtr(s string) *string { return &s }

func TestSecretCurrentStage(t *testing.T) {
	e, _, _ := newTestEngine(t)

	s, v1, err := e.CreateSecret("db-password", "primary db", strPtr("hunter2"), nil)
	require.NoError(t, err)
	require.NotEmpty(t, v1)
	assert.Contains(t, s.ARN, ":secretsmanager:")

	// A second value takes over AWSCURRENT.
	_, v2, err := e.PutSecretValue("db-password", strPtr("correct horse"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	_, cur, err := e.GetSecretValue("db-password", "")
	require.NoError(t, err)
	require.NotNil(t, cur.StringValue)
	assert.Equal(t, "correct horse", *cur.StringValue)
	assert.Equal(t, v2, cur.VersionID)
	assert.Equal(t, `["AWSCURRENT"]`, cur.VersionStages)

	// The old version stays addressable by id with empty stages.
	_, old, err := e.GetSecretValue("db-password", v1)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", *old.StringValue)
	assert.Equal(t, `[]`, old.VersionStages)
}

func TestSecretLookupByARN(t *testing.T) {
	e, _, _ := newTestEngine(t)
	s, _, err := e.CreateSecret("api-key", "", strPtr("k"), nil)
	require.NoError(t, err)

	byARN, err := e.GetSecret(s.ARN)
	require.NoError(t, err)
	assert.Equal(t, "api-key", byARN.Name)

	_, v, err := e.GetSecretValue(s.ARN, "")
	require.NoError(t, err)
	assert.Equal(t, "k", *v.StringValue)
}

func TestSecretBinaryValue(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, _, err := e.CreateSecret("cert", "", nil, []byte{0x01, 0x02})
	require.NoError(t, err)

	_, v, err := e.GetSecretValue("cert", "")
	require.NoError(t, err)
	assert.Nil(t, v.StringValue)
	assert.Equal(t, []byte{0x01, 0x02}, v.BinaryValue)
}

func TestSecretErrors(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, _, err := e.CreateSecret("dup", "", strPtr("x"), nil)
	require.NoError(t, err)

	_, _, err = e.CreateSecret("dup", "", nil, nil)
	assert.True(t, apperr.Is(err, apperr.KindAlreadyExists))

	_, _, err = e.PutSecretValue("dup", nil, nil)
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, _, err = e.GetSecretValue("missing", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, _, err = e.GetSecretValue("dup", "no-such-version")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSecretLifecycle(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, _, err := e.CreateSecret("tmp", "old desc", strPtr("x"), nil)
	require.NoError(t, err)

	updated, err := e.UpdateSecret("tmp", "new desc")
	require.NoError(t, err)
	assert.Equal(t, "new desc", updated.Description)

	all, err := e.ListSecrets()
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = e.DeleteSecret("tmp")
	require.NoError(t, err)
	_, err = e.GetSecret("tmp")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

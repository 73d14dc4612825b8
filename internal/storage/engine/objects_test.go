package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/internal/apperr"
)

func TestPutGetObjectRoundTrip(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateBucket("demo-bucket", "")
	require.NoError(t, err)

	obj, err := e.PutObject("demo-bucket", "hello.txt", []byte("hello"), "text/plain", nil)
	require.NoError(t, err)
	assert.Equal(t, `"2cf24dba5fb0a30e26e83b2ac5b9e29e"`, obj.ETag)
	assert.Equal(t, int64(5), obj.ContentLength)
	assert.Equal(t, "null", obj.VersionID)

	got, body, err := e.GetObject("demo-bucket", "hello.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, obj.ETag, got.ETag)
	assert.Equal(t, "text/plain", got.ContentType)
}

func TestSingleCharBucketLifecycle(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateBucket("b", "us-east-1")
	require.NoError(t, err)

	_, err = e.PutObject("b", "k", []byte("hello"), "", nil)
	require.NoError(t, err)

	obj, body, err := e.GetObject("b", "k", "")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	// ETags derive from SHA-256, not MD5; the MD5 of "hello" would read
	// "5d41402abc4b2a76b9719d911017c592".
	assert.Equal(t, `"2cf24dba5fb0a30e26e83b2ac5b9e29e"`, obj.ETag)

	require.NoError(t, e.PutBucketVersioning("b", VersioningEnabled))
	v1, err := e.PutObject("b", "k", []byte("v1"), "", nil)
	require.NoError(t, err)
	v2, err := e.PutObject("b", "k", []byte("v2"), "", nil)
	require.NoError(t, err)
	assert.NotEqual(t, v1.VersionID, v2.VersionID)

	res, err := e.DeleteObject("b", "k", "")
	require.NoError(t, err)
	assert.True(t, res.DeleteMarker)
	assert.NotEmpty(t, res.VersionID)

	_, _, err = e.GetObject("b", "k", "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNoSuchKey))

	_, body, err = e.GetObject("b", "k", v1.VersionID)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(body))
}

func TestPutObjectUnversionedOverwrite(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateBucket("demo-bucket", "")
	require.NoError(t, err)

	_, err = e.PutObject("demo-bucket", "k", []byte("v1"), "", nil)
	require.NoError(t, err)
	_, err = e.PutObject("demo-bucket", "k", []byte("v2"), "", nil)
	require.NoError(t, err)

	versions, err := e.ListObjectVersions("demo-bucket", "")
	require.NoError(t, err)
	require.Len(t, versions, 1)

	_, body, err := e.GetObject("demo-bucket", "k", "")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(body))
}

func TestVersioningDeleteMarker(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateBucket("versioned", "")
	require.NoError(t, err)
	require.NoError(t, e.PutBucketVersioning("versioned", VersioningEnabled))

	v1, err := e.PutObject("versioned", "doc", []byte("first"), "", nil)
	require.NoError(t, err)
	v2, err := e.PutObject("versioned", "doc", []byte("second"), "", nil)
	require.NoError(t, err)
	assert.NotEqual(t, v1.VersionID, v2.VersionID)
	assert.NotEqual(t, "null", v1.VersionID)

	res, err := e.DeleteObject("versioned", "doc", "")
	require.NoError(t, err)
	assert.True(t, res.DeleteMarker)
	assert.NotEmpty(t, res.VersionID)

	// Latest read hits the marker.
	_, _, err = e.GetObject("versioned", "doc", "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNoSuchKey))

	// Explicit versions are still addressable.
	_, body, err := e.GetObject("versioned", "doc", v1.VersionID)
	require.NoError(t, err)
	assert.Equal(t, "first", string(body))

	// Removing the marker version restores the previous latest.
	res2, err := e.DeleteObject("versioned", "doc", res.VersionID)
	require.NoError(t, err)
	assert.True(t, res2.DeleteMarker)

	_, body, err = e.GetObject("versioned", "doc", "")
	require.NoError(t, err)
	assert.Equal(t, "second", string(body))
}

func TestVersionedDeleteSpecificVersion(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateBucket("versioned", "")
	require.NoError(t, err)
	require.NoError(t, e.PutBucketVersioning("versioned", VersioningEnabled))

	v1, err := e.PutObject("versioned", "doc", []byte("first"), "", nil)
	require.NoError(t, err)
	v2, err := e.PutObject("versioned", "doc", []byte("second"), "", nil)
	require.NoError(t, err)

	res, err := e.DeleteObject("versioned", "doc", v2.VersionID)
	require.NoError(t, err)
	assert.False(t, res.DeleteMarker)
	assert.Equal(t, v2.VersionID, res.VersionID)

	got, body, err := e.GetObject("versioned", "doc", "")
	require.NoError(t, err)
	assert.Equal(t, v1.VersionID, got.VersionID)
	assert.Equal(t, "first", string(body))
}

func TestBlobDeduplication(t *testing.T) {
	e, _, dir := newTestEngine(t)
	_, err := e.CreateBucket("dedup", "")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := e.PutObject("dedup", fmt.Sprintf("key-%02d", i), []byte("same content"), "", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, countBlobFiles(t, dir))

	// Every key still reads back independently.
	for i := 0; i < 10; i++ {
		_, body, err := e.GetObject("dedup", fmt.Sprintf("key-%02d", i), "")
		require.NoError(t, err)
		assert.Equal(t, "same content", string(body))
	}
}

func TestListObjectsPrefixDelimiter(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateBucket("listing", "")
	require.NoError(t, err)
	for _, key := range []string{
		"photos/2024/a.jpg",
		"photos/2024/b.jpg",
		"photos/2025/c.jpg",
		"photos/index.html",
		"readme.txt",
	} {
		_, err := e.PutObject("listing", key, []byte("x"), "", nil)
		require.NoError(t, err)
	}

	res, err := e.ListObjects("listing", "photos/", "/", 1000, "")
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "photos/index.html", res.Contents[0].Key)
	assert.Equal(t, []string{"photos/2024/", "photos/2025/"}, res.CommonPrefixes)
	assert.False(t, res.IsTruncated)
}

func TestListObjectsTruncation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateBucket("paged", "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := e.PutObject("paged", fmt.Sprintf("k%d", i), []byte("x"), "", nil)
		require.NoError(t, err)
	}

	var keys []string
	token := ""
	for {
		res, err := e.ListObjects("paged", "", "", 2, token)
		require.NoError(t, err)
		for _, obj := range res.Contents {
			keys = append(keys, obj.Key)
		}
		if !res.IsTruncated {
			break
		}
		token = res.NextContinuationToken
	}
	assert.Equal(t, []string{"k0", "k1", "k2", "k3", "k4"}, keys)
}

func TestListObjectsSkipsDeleteMarkers(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateBucket("versioned", "")
	require.NoError(t, err)
	require.NoError(t, e.PutBucketVersioning("versioned", VersioningEnabled))

	_, err = e.PutObject("versioned", "gone", []byte("x"), "", nil)
	require.NoError(t, err)
	_, err = e.PutObject("versioned", "kept", []byte("x"), "", nil)
	require.NoError(t, err)
	_, err = e.DeleteObject("versioned", "gone", "")
	require.NoError(t, err)

	res, err := e.ListObjects("versioned", "", "", 1000, "")
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "kept", res.Contents[0].Key)
}

func TestCopyObject(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateBucket("src", "")
	require.NoError(t, err)
	_, err = e.CreateBucket("dst", "")
	require.NoError(t, err)

	orig, err := e.PutObject("src", "a", []byte("payload"), "application/json", map[string]string{"owner": "alice"})
	require.NoError(t, err)

	copied, err := e.CopyObject("src", "a", "", "dst", "b")
	require.NoError(t, err)
	assert.Equal(t, orig.ETag, copied.ETag)

	got, body, err := e.GetObject("dst", "b", "")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, "application/json", got.ContentType)
	assert.Contains(t, got.Metadata, "alice")
}

func TestGetObjectMissing(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateBucket("demo-bucket", "")
	require.NoError(t, err)

	_, _, err = e.GetObject("demo-bucket", "absent", "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNoSuchKey))

	_, _, err = e.GetObject("no-such-bucket", "absent", "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNoSuchBucket))
}

func TestDeleteMissingKeySucceeds(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateBucket("demo-bucket", "")
	require.NoError(t, err)

	res, err := e.DeleteObject("demo-bucket", "never-existed", "")
	require.NoError(t, err)
	assert.False(t, res.DeleteMarker)
}

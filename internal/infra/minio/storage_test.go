package minio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObjectURL(t *testing.T) {
	bucket, key, err := ParseObjectURL("s3://uploads/user/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "uploads", bucket)
	assert.Equal(t, "user/clip.mp4", key)

	for _, bad := range []string{"http://uploads/clip.mp4", "s3://uploads", "s3:///clip.mp4"} {
		_, _, err := ParseObjectURL(bad)
		assert.Error(t, err, bad)
	}
}

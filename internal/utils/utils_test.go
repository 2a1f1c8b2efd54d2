package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "*****", MaskSecret("abc"))
	assert.Equal(t, "eyJh*****", MaskSecret("eyJhbGciOi"))
}

func TestRandBase34(t *testing.T) {
	s, err := RandBase34(12)
	require.NoError(t, err)
	assert.Len(t, s, 12)
	assert.NotContains(t, s, "I")
	assert.NotContains(t, s, "O")

	_, err = RandBase34(0)
	assert.Error(t, err)
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "text/plain; charset=utf-8", DetectContentType("notes/readme.MD"))
	assert.Equal(t, "application/pdf", DetectContentType("docs/report.pdf"))
	assert.Equal(t, "application/octet-stream", DetectContentType("blob.unknownext"))
}

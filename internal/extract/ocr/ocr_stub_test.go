//go:build !ocr

package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStub(t *testing.T) {
	assert.False(t, Enabled)
	c, err := New("eng")
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrOCRNotEnabled)

	var nilClient *Client
	assert.NoError(t, nilClient.Close())
	_, err = (&Client{}).RecognizeImage([]byte{1})
	assert.ErrorIs(t, err, ErrOCRNotEnabled)
}

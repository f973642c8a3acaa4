package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadText(t *testing.T) {
	data := testDoc{pages: []string{pageOneText, "Effective Date 01/15/2024"}}.bytes()

	layer, err := ReadText(data)
	require.NoError(t, err)
	require.Len(t, layer.Pages, 2)
	assert.Contains(t, layer.Pages[0], "Appraisal")
	assert.Contains(t, layer.Pages[1], "Effective")
	assert.Equal(t, ContentText, layer.Type)
	assert.Zero(t, layer.Images)
	assert.Contains(t, layer.Text(), "Springfield")
}

func TestReadText_NoTextLayer(t *testing.T) {
	data := testDoc{pages: []string{"", ""}}.bytes()

	layer, err := ReadText(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoText)
	require.NotNil(t, layer)
	assert.Equal(t, ContentNone, layer.Type)
	assert.Len(t, layer.Pages, 2)
}

func TestReadText_Garbage(t *testing.T) {
	_, err := ReadText([]byte("%PDF-1.4\nnothing here"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoText)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		textLen int
		images  int
		want    ContentType
	}{
		{"text", 400, 0, ContentText},
		{"mixed", 400, 3, ContentMixed},
		{"scanned", 10, 2, ContentScannedImages},
		{"empty", 0, 0, ContentNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.textLen, tt.images))
		})
	}
}

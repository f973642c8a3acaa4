// Package pdf guards and reads PDF input: signature, size and page limits,
// active content, the embedded text layer and AcroForm fields.
package pdf

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ContentType classifies what a document's pages are made of.
type ContentType string

const (
	ContentText          ContentType = "text"
	ContentMixed         ContentType = "mixed"
	ContentScannedImages ContentType = "scanned_images"
	ContentNone          ContentType = "no_content"
)

// minMeaningfulText is the shortest text layer treated as real content.
const minMeaningfulText = 50

// TextLayer is the embedded text of a document, one entry per page.
type TextLayer struct {
	Pages  []string
	Images int
	Type   ContentType
}

// Text joins the pages with blank lines.
func (t *TextLayer) Text() string {
	return strings.Join(t.Pages, "\n\n")
}

// ReadText extracts the embedded text layer page by page. A page that fails
// to decode contributes an empty string so page numbering stays aligned.
func ReadText(data []byte) (layer *TextLayer, err error) {
	defer func() {
		if r := recover(); r != nil {
			layer, err = nil, eris.Errorf("text layer panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "open text layer")
	}

	layer = &TextLayer{Pages: make([]string, 0, reader.NumPage())}
	total := 0
	for n := 1; n <= reader.NumPage(); n++ {
		layer.Pages = append(layer.Pages, pageText(reader, n))
		layer.Images += countImagesOnPage(reader, n)
		total += len(strings.TrimSpace(layer.Pages[n-1]))
	}
	layer.Type = classify(total, layer.Images)

	if layer.Type == ContentNone || layer.Type == ContentScannedImages {
		return layer, eris.Wrapf(ErrNoText, "%s", layer.Type)
	}
	return layer, nil
}

func pageText(reader *pdf.Reader, n int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Debug("page text panic", zap.Int("page", n), zap.Any("panic", r))
			text = ""
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return ""
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		zap.L().Debug("page text unreadable", zap.Int("page", n), zap.Error(err))
		return ""
	}
	return content
}

func countImagesOnPage(reader *pdf.Reader, n int) (count int) {
	defer func() {
		if recover() != nil {
			count = 0
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return 0
	}
	resources := page.V.Key("Resources")
	if resources.IsNull() {
		return 0
	}
	xObjects := resources.Key("XObject")
	if xObjects.IsNull() || xObjects.Kind() != pdf.Dict {
		return 0
	}

	for _, key := range xObjects.Keys() {
		obj := xObjects.Key(key)
		if obj.IsNull() {
			continue
		}
		if sub := obj.Key("Subtype"); !sub.IsNull() && sub.Name() == "Image" {
			count++
		}
	}
	return count
}

func classify(textLen, images int) ContentType {
	switch {
	case textLen < minMeaningfulText && images > 0:
		return ContentScannedImages
	case textLen < minMeaningfulText:
		return ContentNone
	case images > 0:
		return ContentMixed
	default:
		return ContentText
	}
}

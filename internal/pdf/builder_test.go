package pdf

import (
	"fmt"
	"strings"
)

// testDoc assembles a small PDF with accurate cross-reference offsets.
// Object 1 is the catalog, object 2 the page tree and objects 3.. the pages,
// followed by one content stream per page and then any extra objects.
type testDoc struct {
	catalogExtra string
	pages        []string
	pageExtra    []string
	extra        []string
}

func (d testDoc) pageObj(i int) int { return 3 + i }

func (d testDoc) contentObj(i int) int { return 3 + len(d.pages) + i }

func (d testDoc) extraObj(i int) int { return 3 + 2*len(d.pages) + i }

func (d testDoc) bytes() []byte {
	var objs []string

	objs = append(objs, fmt.Sprintf("<<\n/Type /Catalog\n/Pages 2 0 R\n%s>>", d.catalogExtra))

	kids := make([]string, len(d.pages))
	for i := range d.pages {
		kids[i] = fmt.Sprintf("%d 0 R", d.pageObj(i))
	}
	objs = append(objs, fmt.Sprintf("<<\n/Type /Pages\n/Kids [%s]\n/Count %d\n>>", strings.Join(kids, " "), len(d.pages)))

	for i := range d.pages {
		extra := ""
		if i < len(d.pageExtra) {
			extra = d.pageExtra[i]
		}
		objs = append(objs, fmt.Sprintf(
			"<<\n/Type /Page\n/Parent 2 0 R\n/MediaBox [0 0 612 792]\n/Contents %d 0 R\n/Resources <<\n/Font <<\n/F1 <<\n/Type /Font\n/Subtype /Type1\n/BaseFont /Helvetica\n>>\n>>\n>>\n%s>>",
			d.contentObj(i), extra))
	}

	for _, text := range d.pages {
		stream := ""
		if text != "" {
			stream = fmt.Sprintf("BT\n/F1 12 Tf\n72 700 Td\n(%s) Tj\nET\n", text)
		}
		objs = append(objs, fmt.Sprintf("<<\n/Length %d\n>>\nstream\n%sendstream", len(stream), stream))
	}

	objs = append(objs, d.extra...)

	out := "%PDF-1.4\n"
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = len(out)
		out += fmt.Sprintf("%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := len(out)
	out += fmt.Sprintf("xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		out += fmt.Sprintf("%010d 00000 n \n", off)
	}
	out += fmt.Sprintf("trailer\n<<\n/Size %d\n/Root 1 0 R\n>>\nstartxref\n%d\n%%%%EOF", len(objs)+1, xref)

	return []byte(out)
}

const pageOneText = "Uniform Residential Appraisal Report for 123 Main Street Springfield"

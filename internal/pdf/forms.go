package pdf

import (
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/a3tai/reportshield/internal/audit"
)

// namesDict returns the catalog's name dictionary, or nil when absent.
func namesDict(ctx *model.Context) (types.Dict, error) {
	root, err := ctx.Catalog()
	if err != nil {
		return nil, eris.Wrap(err, "catalog")
	}
	obj, found := root.Find("Names")
	if !found {
		return nil, nil
	}
	d, err := ctx.DereferenceDict(obj)
	if err != nil {
		return nil, eris.Wrap(err, "names dictionary")
	}
	return d, nil
}

// ReadForm returns the filled-in AcroForm fields of data as key/value rows.
// Unnamed fields, empty values and buttons are skipped. A document without
// a form yields no rows.
func ReadForm(data []byte) ([]audit.KVPair, error) {
	ctx, err := readContext(data)
	if err != nil {
		return nil, err
	}
	return formFields(ctx)
}

func formFields(ctx *model.Context) ([]audit.KVPair, error) {
	root, err := ctx.Catalog()
	if err != nil {
		return nil, eris.Wrap(err, "catalog")
	}
	acroObj, found := root.Find("AcroForm")
	if !found {
		return nil, nil
	}
	acro, err := ctx.DereferenceDict(acroObj)
	if err != nil || acro == nil {
		return nil, eris.Wrap(err, "AcroForm")
	}
	fieldsObj, found := acro.Find("Fields")
	if !found {
		return nil, nil
	}
	fields, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, eris.Wrap(err, "AcroForm fields")
	}

	w := &formWalker{ctx: ctx, pages: pageNumbers(ctx)}
	for _, f := range fields {
		w.walk(f, "", 0)
	}
	return w.rows, nil
}

// maxFieldDepth bounds recursion through Kids for cyclic forms.
const maxFieldDepth = 16

type formWalker struct {
	ctx   *model.Context
	pages map[int]int
	rows  []audit.KVPair
}

func (w *formWalker) walk(obj types.Object, parent string, depth int) {
	if depth > maxFieldDepth {
		return
	}
	d, err := w.ctx.DereferenceDict(obj)
	if err != nil || d == nil {
		return
	}

	name := parent
	if t, found := d.Find("T"); found {
		if s, err := w.ctx.DereferenceStringOrHexLiteral(t, model.V10, nil); err == nil && s != "" {
			if name != "" {
				name += "."
			}
			name += s
		}
	}

	if kids, found := d.Find("Kids"); found {
		if arr, err := w.ctx.DereferenceArray(kids); err == nil {
			for _, k := range arr {
				w.walk(k, name, depth+1)
			}
		}
	}

	v, found := d.Find("V")
	if !found || name == "" {
		return
	}
	value := w.value(v)
	if value == "" {
		return
	}
	w.rows = append(w.rows, audit.KVPair{Key: name, Value: value, Page: w.page(d)})
}

func (w *formWalker) value(obj types.Object) string {
	if s, err := w.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil); err == nil {
		return strings.TrimSpace(s)
	}
	if n, err := w.ctx.DereferenceName(obj, model.V10, nil); err == nil {
		if n == "Off" {
			return ""
		}
		return string(n)
	}
	if arr, err := w.ctx.DereferenceArray(obj); err == nil {
		var parts []string
		for _, item := range arr {
			if s, err := w.ctx.DereferenceStringOrHexLiteral(item, model.V10, nil); err == nil {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// page resolves the field's widget page through its /P reference, looking at
// the first kid when the field and widget are split. Unknown pages are 1.
func (w *formWalker) page(d types.Dict) int {
	if n := w.pageOf(d); n > 0 {
		return n
	}
	if kids, found := d.Find("Kids"); found {
		if arr, err := w.ctx.DereferenceArray(kids); err == nil && len(arr) > 0 {
			if kd, err := w.ctx.DereferenceDict(arr[0]); err == nil && kd != nil {
				if n := w.pageOf(kd); n > 0 {
					return n
				}
			}
		}
	}
	return 1
}

func (w *formWalker) pageOf(d types.Dict) int {
	obj, found := d.Find("P")
	if !found {
		return 0
	}
	ir, ok := obj.(types.IndirectRef)
	if !ok {
		return 0
	}
	return w.pages[ir.ObjectNumber.Value()]
}

// pageNumbers maps page object numbers to 1-based page numbers.
func pageNumbers(ctx *model.Context) map[int]int {
	out := make(map[int]int, ctx.PageCount)
	for i := 1; i <= ctx.PageCount; i++ {
		_, ir, _, err := ctx.PageDict(i, false)
		if err != nil || ir == nil {
			zap.L().Debug("page dictionary unavailable", zap.Int("page", i), zap.Error(err))
			continue
		}
		out[ir.ObjectNumber.Value()] = i
	}
	return out
}

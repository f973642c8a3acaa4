package pdf

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/reportshield/internal/audit"
)

func formDoc() []byte {
	d := testDoc{pages: []string{pageOneText, "Reconciliation"}}
	date, value, empty, group := d.extraObj(0), d.extraObj(1), d.extraObj(2), d.extraObj(3)
	d.catalogExtra = fmt.Sprintf("/AcroForm << /Fields [%d 0 R %d 0 R %d 0 R %d 0 R] >>\n", date, value, empty, group)
	d.extra = []string{
		fmt.Sprintf("<< /FT /Tx /T (Effective Date) /V (01/15/2024) /Subtype /Widget /P %d 0 R >>", d.pageObj(0)),
		fmt.Sprintf("<< /FT /Tx /T (Opinion of Value) /V ($425,000) /Subtype /Widget /P %d 0 R >>", d.pageObj(1)),
		"<< /FT /Tx /T (Borrower) /V () >>",
		fmt.Sprintf("<< /T (Subject) /Kids [%d 0 R] >>", d.extraObj(4)),
		fmt.Sprintf("<< /FT /Tx /T (State) /V (TX) /Parent %d 0 R /P %d 0 R >>", group, d.pageObj(1)),
	}
	return d.bytes()
}

func TestReadForm(t *testing.T) {
	rows, err := ReadForm(formDoc())
	require.NoError(t, err)

	assert.Equal(t, []audit.KVPair{
		{Key: "Effective Date", Value: "01/15/2024", Page: 1},
		{Key: "Opinion of Value", Value: "$425,000", Page: 2},
		{Key: "Subject.State", Value: "TX", Page: 2},
	}, rows)
}

func TestReadForm_NoForm(t *testing.T) {
	rows, err := ReadForm(testDoc{pages: []string{pageOneText}}.bytes())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadForm_Unreadable(t *testing.T) {
	_, err := ReadForm([]byte("%PDF-1.4\nbroken"))
	assert.Error(t, err)
}

func TestReadForm_NameValues(t *testing.T) {
	d := testDoc{pages: []string{pageOneText}}
	yes, off := d.extraObj(0), d.extraObj(1)
	d.catalogExtra = fmt.Sprintf("/AcroForm << /Fields [%d 0 R %d 0 R] >>\n", yes, off)
	d.extra = []string{
		fmt.Sprintf("<< /FT /Btn /T (Owner Occupied) /V /Yes /P %d 0 R >>", d.pageObj(0)),
		fmt.Sprintf("<< /FT /Btn /T (Tenant Occupied) /V /Off /P %d 0 R >>", d.pageObj(0)),
	}

	rows, err := ReadForm(d.bytes())
	require.NoError(t, err)
	assert.Equal(t, []audit.KVPair{{Key: "Owner Occupied", Value: "Yes", Page: 1}}, rows)
}

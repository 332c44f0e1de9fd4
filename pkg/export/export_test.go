package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Course string `csv:"Course"`
	Slot   int    `csv:"Slot"`
}

func TestCSVExporterRendersTaggedRows(t *testing.T) {
	out, err := NewCSVExporter().Render([]row{{Course: "CSE101", Slot: 1}, {Course: "CSE101L", Slot: 2}})
	require.NoError(t, err)
	assert.Equal(t, "Course,Slot\nCSE101,1\nCSE101L,2\n", string(out))
}

func TestCSVExporterRejectsNonSlice(t *testing.T) {
	_, err := NewCSVExporter().Render(row{Course: "CSE101"})
	assert.Error(t, err)
}

func TestPDFExporterRendersDocument(t *testing.T) {
	data := Dataset{
		Headers: []string{"Course", "Day"},
		Rows:    []map[string]string{{"Course": "CSE101", "Day": "ST"}},
	}
	out, err := NewPDFExporter().Render(data, "Timetable", "generated for tests")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().Render(Dataset{}, "", "")
	assert.Error(t, err)
}

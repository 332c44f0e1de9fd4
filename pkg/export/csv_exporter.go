package export

import (
	"fmt"
	"reflect"

	"github.com/gocarina/gocsv"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders tagged struct slices into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render marshals a slice of structs carrying `csv` tags. An empty slice
// still yields the header row.
func (e *CSVExporter) Render(records interface{}) ([]byte, error) {
	v := reflect.ValueOf(records)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice {
		return nil, fmt.Errorf("csv export expects a slice, got %T", records)
	}
	out, err := gocsv.MarshalBytes(records)
	if err != nil {
		return nil, fmt.Errorf("marshal csv: %w", err)
	}
	return out, nil
}

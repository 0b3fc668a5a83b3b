// Package export renders domain records as CSV.
package export

import (
	"encoding/csv"
	"io"
)

// Exportable is implemented by domain types that can be flattened into one
// CSV record.
type Exportable interface {
	CSVHeader() []string
	CSVRow() []string
}

// Write renders items as CSV with a header row. The header comes from the
// zero value so an empty list still yields a well-formed file.
func Write[T Exportable](w io.Writer, items []T) error {
	cw := csv.NewWriter(w)

	var zero T
	if err := cw.Write(zero.CSVHeader()); err != nil {
		return err
	}
	for _, item := range items {
		if err := cw.Write(item.CSVRow()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

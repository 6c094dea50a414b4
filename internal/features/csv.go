package features

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// WriteCSV writes the table with a header row. Times are RFC 3339 in UTC
// and vector cells are rendered as [a b c].
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, 3+len(t.columns))
	for i := 0; i < t.Len(); i++ {
		record[0] = strconv.FormatInt(t.feature[i], 10)
		record[1] = strconv.Itoa(t.frame[i])
		record[2] = t.time[i].UTC().Format(time.RFC3339Nano)
		for j, c := range t.columns {
			record[3+j] = c.Values[i].String()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

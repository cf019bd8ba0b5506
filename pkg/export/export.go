// Package export writes audit log records in formats suited to spreadsheets
// and scripts.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/vtn/core/eventlog"
)

var csvHeader = []string{"timestamp", "kind", "ven_id", "event_id", "opt_type", "source", "from", "to", "modification_number", "events", "error"}

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, records []eventlog.LogRecord) error {
	if records == nil {
		records = []eventlog.LogRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WriteCSV writes the records to w as CSV with a header row.
func WriteCSV(w io.Writer, records []eventlog.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		rec := []string{
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			r.Kind,
			r.VenID,
			r.EventID,
			r.OptType,
			r.Source,
			r.From,
			r.To,
			strconv.FormatUint(uint64(r.ModificationNumber), 10),
			strconv.Itoa(r.Events),
			r.Error,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write dispatches on format, which is "json" or "csv".
func Write(w io.Writer, format string, records []eventlog.LogRecord) error {
	switch format {
	case "json", "":
		return WriteJSON(w, records)
	case "csv":
		return WriteCSV(w, records)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

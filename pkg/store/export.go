package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/nyxlab/boxd/pkg/errors"
	"github.com/nyxlab/boxd/pkg/trial"
)

// CSVDialect specifies the CSV format variant.
type CSVDialect string

const (
	// DialectStandard uses RFC 4180 compliant CSV.
	DialectStandard CSVDialect = "standard"

	// DialectTSV uses tab-separated values instead of commas.
	DialectTSV CSVDialect = "tsv"
)

// CSVConfig specifies options for flattening a run document to CSV.
type CSVConfig struct {
	// Dialect specifies the CSV format variant. Default: DialectStandard.
	Dialect CSVDialect

	// IncludeHeader writes column names as the first row. Default: true.
	IncludeHeader bool

	// NAString is the representation for missing values. Default "NA",
	// which R and pandas both read natively.
	NAString string
}

// DefaultCSVConfig returns a CSVConfig with the defaults above.
func DefaultCSVConfig() *CSVConfig {
	return &CSVConfig{
		Dialect:       DialectStandard,
		IncludeHeader: true,
		NAString:      "NA",
	}
}

// csvHeaders is the fixed column order. One output row per trial event,
// with the trial context repeated, so the file loads as long-format
// data without reshaping. Trials that logged no events still get one
// row with the event columns set to NA.
var csvHeaders = []string{
	"run_id",
	"animal_id",
	"trial_index",
	"trial_type",
	"trial_outcome",
	"event_type",
	"event_timestamp",
	"duration_ms",
}

// CSVWriter flattens run documents into CSV rows.
type CSVWriter struct {
	config      *CSVConfig
	writer      *csv.Writer
	headerDone  bool
	rowsWritten int
}

// NewCSVWriter creates a CSVWriter targeting w. If config is nil,
// DefaultCSVConfig() is used.
func NewCSVWriter(w io.Writer, config *CSVConfig) *CSVWriter {
	if config == nil {
		config = DefaultCSVConfig()
	}

	csvWriter := csv.NewWriter(w)
	if config.Dialect == DialectTSV {
		csvWriter.Comma = '\t'
	}

	return &CSVWriter{
		config: config,
		writer: csvWriter,
	}
}

// WriteHeader writes the column names. It is called automatically on
// the first WriteDocument when IncludeHeader is set.
func (cw *CSVWriter) WriteHeader() error {
	if cw.headerDone {
		return nil
	}
	if err := cw.writer.Write(csvHeaders); err != nil {
		return errors.PersistenceWrap(err, errors.ErrExportFailed, "could not write CSV header")
	}
	cw.headerDone = true
	return nil
}

// WriteDocument writes every trial of doc as CSV rows.
func (cw *CSVWriter) WriteDocument(doc *Document) error {
	if doc == nil || len(doc.Trials) == 0 {
		return errors.Persistence(errors.ErrExportNoData, "run document has no trials")
	}

	if cw.config.IncludeHeader && !cw.headerDone {
		if err := cw.WriteHeader(); err != nil {
			return err
		}
	}

	na := cw.config.NAString
	for i, data := range doc.Trials {
		base := []string{
			orNA(doc.Metadata.RunID, na),
			orNA(doc.Metadata.AnimalID, na),
			strconv.Itoa(i),
			orNA(stringField(data, "trial_type"), na),
			orNA(stringField(data, "trial_outcome"), na),
		}

		events := trialEvents(data)
		if len(events) == 0 {
			if err := cw.writeRow(append(base, na, na, na)); err != nil {
				return err
			}
			continue
		}
		for _, ev := range events {
			dur := na
			if ev.hasDuration {
				dur = strconv.FormatInt(ev.duration, 10)
			}
			row := append(append([]string{}, base...), orNA(ev.kind, na), orNA(ev.timestamp, na), dur)
			if err := cw.writeRow(row); err != nil {
				return err
			}
		}
	}
	return nil
}

func (cw *CSVWriter) writeRow(row []string) error {
	if err := cw.writer.Write(row); err != nil {
		return errors.PersistenceWrap(err, errors.ErrExportFailed, "could not write CSV row")
	}
	cw.rowsWritten++
	return nil
}

// Flush flushes buffered rows to the underlying writer.
func (cw *CSVWriter) Flush() error {
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return errors.PersistenceWrap(err, errors.ErrExportFailed, "could not flush CSV writer")
	}
	return nil
}

// RowsWritten returns the number of data rows written (excluding header).
func (cw *CSVWriter) RowsWritten() int {
	return cw.rowsWritten
}

// ExportCSV flattens one run document to w.
func ExportCSV(w io.Writer, doc *Document, config *CSVConfig) error {
	writer := NewCSVWriter(w, config)
	if err := writer.WriteDocument(doc); err != nil {
		return err
	}
	return writer.Flush()
}

// eventRow is one trial event with the fields the CSV needs.
type eventRow struct {
	kind        string
	timestamp   string
	duration    int64
	hasDuration bool
}

// trialEvents extracts the event list from a harvested trial. Live
// documents carry typed events; documents reloaded from disk carry the
// generic JSON shape. Both decode to the same rows.
func trialEvents(data map[string]interface{}) []eventRow {
	raw, ok := data["events"]
	if !ok {
		return nil
	}

	switch evs := raw.(type) {
	case []trial.Event:
		rows := make([]eventRow, 0, len(evs))
		for _, e := range evs {
			rows = append(rows, eventRow{
				kind:        e.Type,
				timestamp:   e.Timestamp,
				duration:    e.Duration,
				hasDuration: e.Duration > 0,
			})
		}
		return rows

	case []interface{}:
		rows := make([]eventRow, 0, len(evs))
		for _, v := range evs {
			m, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			row := eventRow{}
			row.kind, _ = m["type"].(string)
			row.timestamp, _ = m["timestamp"].(string)
			if d, ok := m["duration"].(float64); ok {
				row.duration = int64(d)
				row.hasDuration = true
			}
			rows = append(rows, row)
		}
		return rows
	}
	return nil
}

// stringField reads a string value from a harvested trial, tolerating
// absent keys and other types.
func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	if v, ok := data[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// orNA substitutes the NA string for empties.
func orNA(s, na string) string {
	if s == "" {
		return na
	}
	return s
}

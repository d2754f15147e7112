// Package report renders the per-batch parameters sheet and console summary.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/book-expert/radio-tts-service/internal/core"
	"github.com/book-expert/radio-tts-service/internal/fileutil"
	"github.com/book-expert/radio-tts-service/internal/item"
	"github.com/book-expert/radio-tts-service/internal/params"
)

// Row statuses.
const (
	STATUS_OK     = "ok"
	STATUS_FAILED = "failed"
)

const (
	missingValue   = "nil"
	fileNameFormat = "parameters-%s.csv"
)

// StatusColumns follow item.Columns in the sheet header.
var StatusColumns = []string{"duration", "status", "stage", "error"}

// Row is the outcome of one item with the parameters it was run with.
type Row struct {
	Config          params.ResolvedConfig
	Location        string
	DurationSeconds float64
	Err             error
}

// OK reports whether the item produced a clip.
func (r Row) OK() bool {
	return r.Err == nil
}

// Status returns STATUS_OK or STATUS_FAILED.
func (r Row) Status() string {
	if r.OK() {
		return STATUS_OK
	}

	return STATUS_FAILED
}

// Stage returns the failing stage, empty for successful rows.
func (r Row) Stage() core.Stage {
	stage, _ := core.StageOf(r.Err)

	return stage
}

// FileName returns the report file name for an items file stem.
func FileName(stem string) string {
	return fmt.Sprintf(fileNameFormat, stem)
}

// Failed counts failed rows.
func Failed(rows []Row) int {
	failed := 0

	for _, row := range rows {
		if !row.OK() {
			failed++
		}
	}

	return failed
}

// WriteCSV writes rows as a sheet the item reader can ingest again: the
// item columns in their original order, then the status columns. Unset
// values are written as "nil".
func WriteCSV(w io.Writer, rows []Row, separator rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = separator

	header := append(append([]string{}, item.Columns...), StatusColumns...)

	writeErr := writer.Write(header)
	if writeErr != nil {
		return fmt.Errorf("failed to write report header: %w", writeErr)
	}

	for _, row := range rows {
		rowErr := writer.Write(record(row))
		if rowErr != nil {
			return fmt.Errorf("failed to write report row %s: %w", row.Config.Filename, rowErr)
		}
	}

	writer.Flush()

	flushErr := writer.Error()
	if flushErr != nil {
		return fmt.Errorf("failed to flush report: %w", flushErr)
	}

	return nil
}

func record(row Row) []string {
	cfg := row.Config

	noise := missingValue
	if cfg.Noise.Enabled {
		noise = strconv.Itoa(cfg.Noise.DB)
	}

	duration := missingValue
	errorText := missingValue
	stage := missingValue

	if row.OK() {
		duration = strconv.FormatFloat(row.DurationSeconds, 'f', 2, 64)
	} else {
		errorText = row.Err.Error()
		if failed := row.Stage(); failed != "" {
			stage = string(failed)
		}
	}

	return []string{
		cfg.Text,
		cfg.Filename,
		optional(cfg.Subtitle),
		cfg.Voice,
		strconv.Itoa(cfg.HighPass),
		strconv.Itoa(cfg.LowPass),
		strconv.Itoa(cfg.NFilter),
		strconv.Itoa(cfg.Volume),
		noise,
		optional(cfg.Emphasis),
		optional(cfg.Rate),
		optional(cfg.Pitch),
		strconv.FormatBool(cfg.ClickIn),
		strconv.FormatBool(cfg.ClickOut),
		duration,
		row.Status(),
		stage,
		errorText,
	}
}

func optional(value item.Optional[string]) string {
	return value.OrElse(missingValue)
}

// RenderTable returns a console summary of rows.
func RenderTable(rows []Row) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Filename", "Voice", "Duration", "Status", "Stage"})

	total := 0.0

	for index, row := range rows {
		duration := "-"
		if row.OK() {
			duration = fileutil.FormatDuration(row.DurationSeconds)
			total += row.DurationSeconds
		}

		tw.AppendRow(table.Row{
			index + 1,
			row.Config.Filename,
			row.Config.Voice,
			duration,
			row.Status(),
			string(row.Stage()),
		})
	}

	tw.AppendFooter(table.Row{
		"", fmt.Sprintf("%d clips", len(rows)), fmt.Sprintf("%d failed", Failed(rows)),
		fileutil.FormatDuration(total), "", "",
	})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}

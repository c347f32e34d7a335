// Package export renders processing history as an XLSX workbook for download.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mkorolev/docbrief/internal/core/ports"
)

// Service is a small façade over the record store that produces XLSX bytes.
type Service struct {
	records ports.RecordStore
	logger  *slog.Logger
}

func NewService(records ports.RecordStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, logger: logger}
}

// ExportHistoryXLSX returns a workbook with the most recent document records,
// newest first. limit <= 0 falls back to the store default.
func (s *Service) ExportHistoryXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	recs, err := s.records.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Documents"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defaultSheet, _ := f.GetSheetIndex("Sheet1"); defaultSheet != -1 && sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Processed At",
		"Filename",
		"Type",
		"Words",
		"Processing (ms)",
		"Status",
		"Expires At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.CreatedAt.UTC().Format("2006-01-02 15:04"))
		write(2, r.Filename)
		write(3, r.FileType)
		write(4, r.WordCount)
		write(5, r.ProcessingMS)
		write(6, r.Status)
		if !r.ExpiresAt.IsZero() {
			write(7, r.ExpiresAt.UTC().Format("2006-01-02"))
		}
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 18)
	_ = f.SetColWidth(sheet, "B", "B", 36)
	_ = f.SetColWidth(sheet, "G", "G", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("history_exported",
		"rows", len(recs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

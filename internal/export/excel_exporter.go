// Package export renders a document's annotation ledger as a spreadsheet for
// offline review and reporting.
package export

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/annoworks/annotation-pipeline/internal/archive"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ExcelExporter renders archives to XLSX
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

var headerRow = []string{
	"Field", "Task ID", "Task Name", "Role", "User", "Operation Time",
	"Value", "Review Comment", "Expert Note", "Adjustment Reason",
}

// Export writes one row per ledger entry, grouped by field name
func (e *ExcelExporter) Export(a *archive.Archive) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Annotations"
	f.SetSheetName("Sheet1", sheet)

	for col, title := range headerRow {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	fields := make([]string, 0, len(a.AnnotationRecords))
	for name := range a.AnnotationRecords {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	row := 2
	for _, name := range fields {
		for _, entry := range a.AnnotationRecords[name] {
			values := []interface{}{
				name,
				entry.TaskID,
				entry.TaskName,
				entry.RoleType,
				entry.Username,
				entry.OperationTime,
				string(entry.AnnotationContent),
				entry.ReviewComment,
				entry.ExpertNote,
				entry.AdjustmentReason,
			}
			for col, v := range values {
				cell, err := excelize.CoordinatesToCellName(col+1, row)
				if err != nil {
					return nil, fmt.Errorf("failed to build cell name: %w", err)
				}
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return nil, fmt.Errorf("failed to write cell: %w", err)
				}
			}
			row++
		}
	}

	if a.FileInfo != nil {
		infoSheet := "Document"
		if _, err := f.NewSheet(infoSheet); err != nil {
			return nil, fmt.Errorf("failed to create document sheet: %w", err)
		}
		pairs := [][2]interface{}{
			{"File ID", a.FileInfo.FileID},
			{"File Name", a.FileInfo.FileName},
			{"Storage Path", a.FileInfo.StoragePath},
			{"Upload Time", a.FileInfo.UploadTime},
			{"File Size (bytes)", a.FileInfo.FileSizeBytes},
			{"Latest Version", a.LatestAnnotationVersion},
			{"Last Modified", a.LastModifiedTime},
		}
		for i, pair := range pairs {
			keyCell := fmt.Sprintf("A%d", i+1)
			valCell := fmt.Sprintf("B%d", i+1)
			if err := f.SetCellValue(infoSheet, keyCell, pair[0]); err != nil {
				return nil, fmt.Errorf("failed to write document info: %w", err)
			}
			if err := f.SetCellValue(infoSheet, valCell, pair[1]); err != nil {
				return nil, fmt.Errorf("failed to write document info: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	e.logger.Info("Archive exported", zap.Int("rows", row-2))
	return buf.Bytes(), nil
}

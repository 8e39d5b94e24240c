package extractor

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/dataforge/ingest/internal/pipeline"
	"github.com/dataforge/ingest/internal/store/model"
)

// FileExtractor reads transaction exports dropped into a folder. Both csv and
// xlsx files are picked up; the first row of each file is the header.
type FileExtractor struct {
	folder string
}

func NewFileExtractor(folder string) *FileExtractor {
	return &FileExtractor{folder: folder}
}

func (e *FileExtractor) SourceType() model.SourceType {
	return model.SourceCSVFile
}

func (e *FileExtractor) Extract(ctx context.Context) iter.Seq2[model.RawRecord, error] {
	return func(yield func(model.RawRecord, error) bool) {
		entries, err := os.ReadDir(e.folder)
		if err != nil {
			yield(model.RawRecord{}, pipeline.NewPermanentExtractionError(errors.Wrapf(err, "failed to read data folder %s", e.folder)))
			return
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(e.folder, entry.Name())

			var rows [][]string
			switch strings.ToLower(filepath.Ext(entry.Name())) {
			case ".csv":
				rows, err = readCSV(path)
			case ".xlsx":
				rows, err = readXLSX(path)
			default:
				continue
			}
			if err != nil {
				yield(model.RawRecord{}, pipeline.NewPermanentExtractionError(err))
				return
			}

			if !e.yieldRows(ctx, entry.Name(), rows, yield) {
				return
			}
		}
	}
}

func (e *FileExtractor) yieldRows(ctx context.Context, fileName string, rows [][]string, yield func(model.RawRecord, error) bool) bool {
	if len(rows) == 0 {
		return true
	}

	header := make([]string, len(rows[0]))
	for i, col := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}

	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			yield(model.RawRecord{}, err)
			return false
		}

		rowNumber := i + 2
		payload := model.JSONMap{
			"source_file": fileName,
			"row_number":  rowNumber,
		}
		for col, name := range header {
			if col >= len(row) {
				continue
			}
			payload[name] = normalizeCell(name, row[col])
		}
		if id, ok := payload["transaction_id"].(string); !ok || id == "" {
			payload["transaction_id"] = syntheticTransactionID(fileName, rowNumber)
		}

		record := model.RawRecord{
			SourceType:  model.SourceCSVFile,
			Payload:     payload,
			ExtractedAt: time.Now().UTC(),
		}
		if !yield(record, nil) {
			return false
		}
	}
	return true
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", path)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return rows, nil
}

// normalizeCell converts numeric columns to numbers so the payload carries
// real types. A cell that fails to parse stays a string and is caught by the
// quality checks downstream.
func normalizeCell(name, raw string) any {
	value := strings.TrimSpace(raw)
	switch name {
	case "amount", "quantity":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return value
}

func syntheticTransactionID(fileName string, rowNumber int) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	return fmt.Sprintf("%s-%d", base, rowNumber)
}

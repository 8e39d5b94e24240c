package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataforge/ingest/internal/pipeline"
	"github.com/dataforge/ingest/internal/store/model"
)

func collect(t *testing.T, ex pipeline.Extractor) ([]model.RawRecord, error) {
	t.Helper()
	var records []model.RawRecord
	for record, err := range ex.Extract(context.Background()) {
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
	return records, nil
}

func writeFile(t *testing.T, folder, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(folder, name), []byte(content), 0o644))
}

func TestFileExtractorReadsCSV(t *testing.T) {
	folder := t.TempDir()
	writeFile(t, folder, "sales.csv",
		"Transaction_ID,Date,Product,Category,Amount,Quantity,Region\n"+
			"txn-1,2026-08-15,Widget,Hardware,19.99,2,EMEA\n"+
			"txn-2,2026-08-16,Gadget,Hardware,5.50,1,APAC\n")

	records, err := collect(t, NewFileExtractor(folder))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0].Payload
	assert.Equal(t, model.SourceCSVFile, records[0].SourceType)
	assert.Equal(t, "txn-1", first["transaction_id"])
	assert.Equal(t, 19.99, first["amount"])
	assert.Equal(t, 2.0, first["quantity"])
	assert.Equal(t, "sales.csv", first["source_file"])
	assert.Equal(t, 2, first["row_number"])
	assert.Equal(t, 3, records[1].Payload["row_number"])
}

func TestFileExtractorSynthesizesTransactionID(t *testing.T) {
	folder := t.TempDir()
	writeFile(t, folder, "export.csv",
		"Date,Product,Category,Amount,Quantity,Region\n"+
			"2026-08-15,Widget,Hardware,10,1,EMEA\n")

	records, err := collect(t, NewFileExtractor(folder))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "export-2", records[0].Payload["transaction_id"])
}

func TestFileExtractorKeepsUnparseableNumbersAsStrings(t *testing.T) {
	folder := t.TempDir()
	writeFile(t, folder, "bad.csv",
		"transaction_id,amount,quantity\n"+
			"txn-1,not-a-number,2\n")

	records, err := collect(t, NewFileExtractor(folder))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "not-a-number", records[0].Payload["amount"])
	assert.Equal(t, 2.0, records[0].Payload["quantity"])
}

func TestFileExtractorIgnoresUnknownExtensions(t *testing.T) {
	folder := t.TempDir()
	writeFile(t, folder, "notes.txt", "not data")
	writeFile(t, folder, "sales.csv", "transaction_id,amount\ntxn-1,10\n")

	records, err := collect(t, NewFileExtractor(folder))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFileExtractorMissingFolderIsPermanent(t *testing.T) {
	_, err := collect(t, NewFileExtractor(filepath.Join(t.TempDir(), "missing")))
	require.Error(t, err)
	assert.False(t, pipeline.IsTransient(err))
}

func TestFileExtractorEmptyFolder(t *testing.T) {
	records, err := collect(t, NewFileExtractor(t.TempDir()))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFileExtractorHonorsCancelledContext(t *testing.T) {
	folder := t.TempDir()
	writeFile(t, folder, "sales.csv", "transaction_id,amount\ntxn-1,10\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var err error
	for _, e := range NewFileExtractor(folder).Extract(ctx) {
		err = e
	}
	assert.ErrorIs(t, err, context.Canceled)
}

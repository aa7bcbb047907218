package utils

import (
	"bytes"
	"encoding/csv"
	"testing"

	"fungiscan/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRecords() []models.DiagnosisRecord {
	oidium := "Oidium"
	return []models.DiagnosisRecord{
		{RecordID: "r2", Timestamp: 1700000060, Username: "alice", Detected: true, Reasoning: "Polvo blanco", FungusType: &oidium, ReadableDate: "2023-11-14 22:14"},
		{RecordID: "r1", Timestamp: 1700000000, Username: "alice", Detected: false, Reasoning: "Sana, \"sin\" manchas", ReadableDate: "2023-11-14 22:13"},
	}
}

func TestDiagnosisWorkbook(t *testing.T) {
	data, err := DiagnosisWorkbook(sampleRecords())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{diagnosisSheet, "Info"}, f.GetSheetList())

	rows, err := f.GetRows(diagnosisSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, diagnosisHeaders, rows[0])
	assert.Equal(t, []string{"r2", "2023-11-14 22:14", "alice", "si", "Oidium", "Polvo blanco"}, rows[1])
	assert.Equal(t, "", rows[2][4])

	detected, err := f.GetCellValue("Info", "B3")
	require.NoError(t, err)
	assert.Equal(t, "1", detected)
}

func TestDiagnosisCSV(t *testing.T) {
	data, err := DiagnosisCSV(sampleRecords())
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "timestamp", rows[0][6])
	assert.Equal(t, "Sana, \"sin\" manchas", rows[2][5])
	assert.Equal(t, "1700000000.000", rows[2][6])
}

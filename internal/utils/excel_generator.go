package utils

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"fungiscan/internal/models"

	"github.com/xuri/excelize/v2"
)

const diagnosisSheet = "Diagnosticos"

var diagnosisHeaders = []string{"ID", "Fecha", "Usuario", "Detectado", "Tipo de hongo", "Razonamiento"}

// DiagnosisWorkbook renders records as an xlsx workbook with a summary sheet.
func DiagnosisWorkbook(records []models.DiagnosisRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(diagnosisSheet); err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for i, header := range diagnosisHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(diagnosisSheet, cell, header)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	f.SetCellStyle(diagnosisSheet, "A1", "F1", headerStyle)

	detectedStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFCCCC"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	for rowIdx, record := range records {
		row := rowIdx + 2
		f.SetCellValue(diagnosisSheet, fmt.Sprintf("A%d", row), record.RecordID)
		f.SetCellValue(diagnosisSheet, fmt.Sprintf("B%d", row), record.ReadableDate)
		f.SetCellValue(diagnosisSheet, fmt.Sprintf("C%d", row), record.Username)
		f.SetCellValue(diagnosisSheet, fmt.Sprintf("D%d", row), yesNo(record.Detected))
		f.SetCellValue(diagnosisSheet, fmt.Sprintf("E%d", row), fungusType(record))
		f.SetCellValue(diagnosisSheet, fmt.Sprintf("F%d", row), record.Reasoning)

		if record.Detected {
			f.SetCellStyle(diagnosisSheet, fmt.Sprintf("D%d", row), fmt.Sprintf("D%d", row), detectedStyle)
		}
	}

	f.SetColWidth(diagnosisSheet, "A", "A", 38)
	f.SetColWidth(diagnosisSheet, "B", "E", 18)
	f.SetColWidth(diagnosisSheet, "F", "F", 80)

	if err := createInfoSheet(f, records); err != nil {
		return nil, err
	}

	// Sheet indexes shift after deleting the default sheet.
	index, err := f.GetSheetIndex(diagnosisSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func createInfoSheet(f *excelize.File, records []models.DiagnosisRecord) error {
	if _, err := f.NewSheet("Info"); err != nil {
		return err
	}

	detected := 0
	for _, r := range records {
		if r.Detected {
			detected++
		}
	}

	rows := [][]interface{}{
		{"Generado", time.Now().Format(models.ReadableDateLayout)},
		{"Registros", len(records)},
		{"Con hongo detectado", detected},
	}
	if len(records) > 0 {
		rows = append(rows, []interface{}{"Rango",
			fmt.Sprintf("%s - %s", records[len(records)-1].ReadableDate, records[0].ReadableDate)})
	}

	for i, row := range rows {
		f.SetCellValue("Info", fmt.Sprintf("A%d", i+1), row[0])
		f.SetCellValue("Info", fmt.Sprintf("B%d", i+1), row[1])
	}
	return nil
}

// DiagnosisCSV renders records as CSV with the same columns as the workbook plus the epoch timestamp.
func DiagnosisCSV(records []models.DiagnosisRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(append(diagnosisHeaders, "timestamp")); err != nil {
		return nil, err
	}
	for _, record := range records {
		row := []string{
			record.RecordID,
			record.ReadableDate,
			record.Username,
			yesNo(record.Detected),
			fungusType(record),
			record.Reasoning,
			strconv.FormatFloat(record.Timestamp, 'f', 3, 64),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func yesNo(v bool) string {
	if v {
		return "si"
	}
	return "no"
}

func fungusType(record models.DiagnosisRecord) string {
	if record.FungusType == nil {
		return ""
	}
	return *record.FungusType
}

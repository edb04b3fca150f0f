// Package export renders a feature's records as an xlsx workbook.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"workflow-portal-go/internal/models"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const timeLayout = "2006-01-02 15:04:05"

type column struct {
	header string
	width  float64
	value  func(models.FeatureRecord) any
}

// leading and trailing columns surround the feature's own form fields
var (
	leadingColumns = []column{
		{"Criado em", 20, func(r models.FeatureRecord) any { return r.CreatedAt.Format(timeLayout) }},
		{"Prioridade", 12, func(r models.FeatureRecord) any { return string(r.Priority) }},
		{"Status", 14, func(r models.FeatureRecord) any { return string(r.Status) }},
		{"Responsável", 20, func(r models.FeatureRecord) any { return r.Responsible }},
		{"Descrição", 40, func(r models.FeatureRecord) any { return r.Description }},
	}
	trailingColumns = []column{
		{"Mensagem", 40, func(r models.FeatureRecord) any { return r.Message }},
		{"Observação", 30, func(r models.FeatureRecord) any { return r.Observation }},
		{"Alerta", 38, func(r models.FeatureRecord) any { return r.AlertID }},
		{"Departamentos Notificados", 28, func(r models.FeatureRecord) any { return strings.Join(r.NotifyDepartments, ", ") }},
		{"Anexos", 30, func(r models.FeatureRecord) any { return fileNames(r.Files) }},
	}
)

// Records builds the workbook for one feature partition. Records are
// written in the order given.
func Records(feature models.DepartmentFeature, records []models.FeatureRecord) ([]byte, error) {
	columns := make([]column, 0, len(leadingColumns)+len(feature.FormFields)+len(trailingColumns))
	columns = append(columns, leadingColumns...)
	for _, field := range feature.FormFields {
		id := field.ID
		columns = append(columns, column{field.Label, 20, func(r models.FeatureRecord) any { return r.Fields[id] }})
	}
	columns = append(columns, trailingColumns...)

	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(feature.Name)
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("failed to delete default sheet: %w", err)
		}
	}
	// deleting Sheet1 shifts indexes
	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, c := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, c.header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, name, name, c.width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for r, rec := range records {
		for i, c := range columns {
			v := c.value(rec)
			if v == nil || v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName trims name to Excel's 31 character limit and drops the
// characters sheet names may not contain.
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return -1
		}
		return r
	}, name)
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	if strings.TrimSpace(name) == "" {
		return "Sheet1"
	}
	return name
}

func fileNames(files []models.FileAttachment) string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return strings.Join(names, ", ")
}

package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/shippingcomps/backend/pkg/models"
)

// Service renders completed analyses as downloadable files
type Service struct{}

// NewService creates a new export service
func NewService() *Service {
	return &Service{}
}

// Filename builds a download filename for an analysis export
func Filename(analysisID, format string) string {
	ext := format
	if format == "excel" {
		ext = "xlsx"
	}
	return fmt.Sprintf("shipping-report-%s-%s.%s", analysisID, time.Now().Format("20060102"), ext)
}

// GenerateCSV renders the competitor thresholds as CSV bytes
func (s *Service) GenerateCSV(record *models.AnalysisRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"Competitor", "Website", "Products", "Free Shipping Threshold", "Delivery Timeframe", "Promotions"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for _, c := range record.Competitors {
		row := []string{
			c.Name,
			c.Website,
			c.Products,
			thresholdLabel(c.Shipping.Threshold),
			c.Shipping.DeliveryTimeframe,
			c.Shipping.Promotions,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateExcel renders the analysis as an Excel workbook
func (s *Service) GenerateExcel(record *models.AnalysisRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Competitors"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	headers := []string{"Competitor", "Website", "Products", "Free Shipping Threshold", "Delivery Timeframe", "Promotions", "Policy"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, c := range record.Competitors {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), c.Name)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), c.Website)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), c.Products)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), thresholdLabel(c.Shipping.Threshold))
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), c.Shipping.DeliveryTimeframe)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), c.Shipping.Promotions)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), c.Shipping.PolicyText)
	}

	// summary row below the competitor table
	summaryRow := len(record.Competitors) + 3
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", summaryRow), "Average threshold")
	f.SetCellValue(sheetName, fmt.Sprintf("D%d", summaryRow), fmt.Sprintf("$%.2f", record.AverageThreshold))

	for i := range headers {
		col := string(rune('A' + i))
		f.SetColWidth(sheetName, col, col, 22)
	}

	f.SetActiveSheet(index)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func thresholdLabel(threshold *float64) string {
	if threshold == nil {
		return "Not specified"
	}
	if *threshold == 0 {
		return "Free on all orders"
	}
	return fmt.Sprintf("$%.2f", *threshold)
}

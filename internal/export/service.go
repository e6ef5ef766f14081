// Package export renders stored receipts as an XLSX workbook.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"invoice-tracker/internal/entity"
	"invoice-tracker/internal/repository"
)

const (
	receiptsSheet = "Receipts"
	itemsSheet    = "Line Items"
)

// Service is a small facade over the receipts repository that produces
// XLSX bytes for exports.
type Service struct {
	receiptsRepo repository.ReceiptRepository
	logger       *slog.Logger
}

func NewService(repo repository.ReceiptRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{receiptsRepo: repo, logger: logger}
}

// ExportReceiptsXLSX returns an XLSX workbook for the given profile and
// ingestion window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all receipts for the profile.
func (s *Service) ExportReceiptsXLSX(ctx context.Context, profileID uuid.UUID, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	fromDate, toDate := normalizeWindow(from, to)
	recs, err := s.receiptsRepo.ListReceipts(ctx, profileID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}

	f := excelize.NewFile()
	if err := writeReceiptsSheet(f, recs); err != nil {
		return nil, err
	}
	if err := writeItemsSheet(f, recs); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"profile_id", profileID.String(),
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func normalizeWindow(from, to *time.Time) (*time.Time, *time.Time) {
	var fromDate, toDate *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		fromDate = &f
	}
	if to != nil {
		t := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, time.UTC)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		now := time.Now().UTC()
		t := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, time.UTC)
		toDate = &t
	}
	return fromDate, toDate
}

func writeReceiptsSheet(f *excelize.File, recs []*entity.Receipt) error {
	defaultSheet := f.GetSheetName(f.GetActiveSheetIndex())
	if defaultSheet != receiptsSheet {
		if err := f.SetSheetName(defaultSheet, receiptsSheet); err != nil {
			return err
		}
	}

	headers := []string{
		"Receipt ID",
		"Merchant",
		"Date",
		"Subtotal",
		"Tax",
		"Total",
		"Currency",
		"Category",
		"Items",
		"Ingested At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(receiptsSheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(receiptsSheet, cell, v)
		}
		write(1, r.ID.String())
		write(2, r.MerchantName)
		// the date column carries the text exactly as it appeared on
		// the receipt, never reformatted
		write(3, r.TxDateRaw)
		writeMoney(write, 4, r.Subtotal)
		writeMoney(write, 5, r.Tax)
		writeMoney(write, 6, r.Total)
		write(7, r.CurrencyCode)
		write(8, r.CategoryName)
		write(9, len(r.Items))
		write(10, r.CreatedAt.UTC().Format(time.RFC3339))
		row++
	}

	_ = f.SetColWidth(receiptsSheet, "A", "A", 38)
	_ = f.SetColWidth(receiptsSheet, "B", "B", 28)
	_ = f.SetColWidth(receiptsSheet, "C", "C", 14)
	_ = f.SetColWidth(receiptsSheet, "D", "F", 12)
	_ = f.SetColWidth(receiptsSheet, "H", "H", 22)
	_ = f.SetColWidth(receiptsSheet, "J", "J", 22)
	return nil
}

func writeItemsSheet(f *excelize.File, recs []*entity.Receipt) error {
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return err
	}

	headers := []string{"Receipt ID", "Merchant", "Position", "Item", "Price"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(itemsSheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		for _, it := range r.Items {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(itemsSheet, cell, v)
			}
			write(1, r.ID.String())
			write(2, r.MerchantName)
			write(3, it.Position)
			write(4, it.Name)
			writeMoney(write, 5, it.Price)
			row++
		}
	}

	_ = f.SetColWidth(itemsSheet, "A", "A", 38)
	_ = f.SetColWidth(itemsSheet, "B", "B", 28)
	_ = f.SetColWidth(itemsSheet, "D", "D", 40)
	return nil
}

func writeMoney(write func(int, any), col int, v *float64) {
	if v == nil {
		write(col, "")
		return
	}
	write(col, *v)
}

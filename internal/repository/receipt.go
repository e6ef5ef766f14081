package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"invoice-tracker/internal/common"
	"invoice-tracker/internal/entity"
	"invoice-tracker/internal/parser"
)

// UpsertReceiptRequest wraps parameters for storing one parsed receipt.
type UpsertReceiptRequest struct {
	File         *entity.ReceiptFile
	Record       parser.Receipt
	CurrencyCode string
	CategoryName string
}

type ReceiptRepository interface {
	// UpsertFromRecord stores the parsed record. Reprocessing a file
	// that already has a receipt replaces the receipt's fields and items.
	UpsertFromRecord(ctx context.Context, req *UpsertReceiptRequest) (*entity.Receipt, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	// ListReceipts windows on created_at: the extracted date is a
	// verbatim substring with no guaranteed calendar meaning, so it
	// cannot drive range queries.
	ListReceipts(ctx context.Context, profileID uuid.UUID, from, to *time.Time) ([]*entity.Receipt, error)
}

type receiptRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewReceiptRepository(db *DB, logger *slog.Logger) ReceiptRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &receiptRepository{db: db, logger: logger}
}

func (r *receiptRepository) UpsertFromRecord(ctx context.Context, req *UpsertReceiptRequest) (*entity.Receipt, error) {
	rec := req.Record
	now := time.Now().UTC()

	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.WrapError(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	var receiptID uuid.UUID
	if req.File.ReceiptID != nil {
		receiptID = *req.File.ReceiptID
		_, err = tx.ExecContext(ctx,
			`UPDATE receipts SET merchant_name = $1, tx_date_raw = $2, subtotal = $3, tax = $4, total = $5,
			        currency_code = $6, category_name = $7, raw_text = $8, updated_at = $9
			 WHERE id = $10`,
			rec.Merchant, rec.Date, rec.Subtotal, rec.Tax, rec.Total,
			req.CurrencyCode, req.CategoryName, rec.RawText, now, receiptID)
		if err != nil {
			r.logger.Error("update receipt failed", "receipt_id", receiptID, "error", err)
			return nil, common.WrapError(err, "update receipt")
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM receipt_items WHERE receipt_id = $1`, receiptID); err != nil {
			return nil, common.WrapError(err, "clear receipt items")
		}
	} else {
		receiptID = uuid.New()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO receipts (id, profile_id, merchant_name, tx_date_raw, subtotal, tax, total,
			                       currency_code, category_name, raw_text, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			receiptID, req.File.ProfileID, rec.Merchant, rec.Date, rec.Subtotal, rec.Tax, rec.Total,
			req.CurrencyCode, req.CategoryName, rec.RawText, now, now)
		if err != nil {
			r.logger.Error("insert receipt failed", "file_id", req.File.ID, "error", err)
			return nil, common.WrapError(err, "insert receipt")
		}
	}

	for i, item := range rec.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO receipt_items (id, receipt_id, position, name, price) VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), receiptID, i, item.Name, item.Price)
		if err != nil {
			return nil, common.WrapError(err, "insert receipt item")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, common.WrapError(err, "commit receipt")
	}
	r.logger.Info("receipt upserted", "receipt_id", receiptID, "merchant", rec.Merchant, "items", len(rec.Items))
	return r.GetByID(ctx, receiptID)
}

const receiptColumns = `id, profile_id, merchant_name, tx_date_raw, subtotal, tax, total, currency_code, category_name, raw_text, created_at, updated_at`

func (r *receiptRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	row := r.db.SQL.QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE id = $1`, id)
	rec, err := scanReceipt(row)
	if err != nil {
		return nil, err
	}
	items, err := r.listItems(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	rec.Items = items
	return rec, nil
}

func (r *receiptRepository) ListReceipts(ctx context.Context, profileID uuid.UUID, from, to *time.Time) ([]*entity.Receipt, error) {
	q := `SELECT ` + receiptColumns + ` FROM receipts WHERE profile_id = $1`
	args := []any{profileID}
	if from != nil {
		args = append(args, *from)
		q += ` AND created_at >= $2`
	}
	if to != nil {
		args = append(args, *to)
		if from != nil {
			q += ` AND created_at <= $3`
		} else {
			q += ` AND created_at <= $2`
		}
	}
	q += ` ORDER BY created_at`

	rows, err := r.db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("list receipts failed", "profile_id", profileID, "error", err)
		return nil, common.WrapError(err, "list receipts")
	}
	defer rows.Close()

	var out []*entity.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapError(err, "list receipts")
	}
	for _, rec := range out {
		items, err := r.listItems(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		rec.Items = items
	}
	return out, nil
}

func (r *receiptRepository) listItems(ctx context.Context, receiptID uuid.UUID) ([]entity.ReceiptItem, error) {
	rows, err := r.db.SQL.QueryContext(ctx,
		`SELECT id, receipt_id, position, name, price FROM receipt_items WHERE receipt_id = $1 ORDER BY position`,
		receiptID)
	if err != nil {
		return nil, common.WrapError(err, "list receipt items")
	}
	defer rows.Close()

	items := make([]entity.ReceiptItem, 0, 8)
	for rows.Next() {
		var (
			it    entity.ReceiptItem
			price sql.NullFloat64
		)
		if err := rows.Scan(&it.ID, &it.ReceiptID, &it.Position, &it.Name, &price); err != nil {
			return nil, common.WrapError(err, "scan receipt item")
		}
		if price.Valid {
			p := price.Float64
			it.Price = &p
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanReceipt(row rowScanner) (*entity.Receipt, error) {
	var (
		rec      entity.Receipt
		subtotal sql.NullFloat64
		tax      sql.NullFloat64
		total    sql.NullFloat64
	)
	err := row.Scan(&rec.ID, &rec.ProfileID, &rec.MerchantName, &rec.TxDateRaw, &subtotal, &tax, &total,
		&rec.CurrencyCode, &rec.CategoryName, &rec.RawText, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "scan receipt")
	}
	if subtotal.Valid {
		v := subtotal.Float64
		rec.Subtotal = &v
	}
	if tax.Valid {
		v := tax.Float64
		rec.Tax = &v
	}
	if total.Valid {
		v := total.Float64
		rec.Total = &v
	}
	return &rec, nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"invoice-tracker/constants"
	"invoice-tracker/internal/common"
	"invoice-tracker/internal/entity"
)

type ReceiptFileRepository interface {
	// UpsertByHash records a file, deduplicating on (profile, sha256).
	// The second return value reports whether the file was already known.
	UpsertByHash(ctx context.Context, profileID uuid.UUID, path, ext string, size int64, hash []byte, uploadedAt time.Time) (*entity.ReceiptFile, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ReceiptFile, error)
	SetReceiptID(ctx context.Context, fileID, receiptID uuid.UUID) error
}

type receiptFileRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewReceiptFileRepository(db *DB, logger *slog.Logger) ReceiptFileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &receiptFileRepository{db: db, logger: logger}
}

const fileColumns = `id, profile_id, receipt_id, source_path, filename, file_ext, file_size, content_hash, uploaded_at`

func (r *receiptFileRepository) UpsertByHash(ctx context.Context, profileID uuid.UUID, path, ext string, size int64, hash []byte, uploadedAt time.Time) (*entity.ReceiptFile, bool, error) {
	hashHex := hex.EncodeToString(hash)

	row := r.db.SQL.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM receipt_files WHERE profile_id = $1 AND content_hash = $2`,
		profileID, hashHex)
	existing, err := scanFile(row)
	if err == nil {
		r.logger.Info("file deduplicated", "file_id", existing.ID, "path", path)
		return existing, true, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, false, err
	}

	f := &entity.ReceiptFile{
		ID:          uuid.New(),
		ProfileID:   profileID,
		SourcePath:  path,
		Filename:    filepath.Base(path),
		FileExt:     constants.NormalizeExt(filepath.Ext(path)),
		FileSize:    size,
		ContentHash: hashHex,
		UploadedAt:  uploadedAt,
	}
	if ext != "" {
		f.FileExt = constants.NormalizeExt(ext)
	}
	_, err = r.db.SQL.ExecContext(ctx,
		`INSERT INTO receipt_files (id, profile_id, source_path, filename, file_ext, file_size, content_hash, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.ProfileID, f.SourcePath, f.Filename, f.FileExt, f.FileSize, f.ContentHash, f.UploadedAt)
	if err != nil {
		r.logger.Error("insert file failed", "path", path, "error", err)
		return nil, false, common.WrapError(err, "insert file")
	}
	r.logger.Info("file recorded", "file_id", f.ID, "path", path, "hash", hashHex[:12])
	return f, false, nil
}

func (r *receiptFileRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.ReceiptFile, error) {
	row := r.db.SQL.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM receipt_files WHERE id = $1`, id)
	return scanFile(row)
}

func (r *receiptFileRepository) SetReceiptID(ctx context.Context, fileID, receiptID uuid.UUID) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`UPDATE receipt_files SET receipt_id = $1 WHERE id = $2`, receiptID, fileID)
	if err != nil {
		r.logger.Error("link file to receipt failed", "file_id", fileID, "receipt_id", receiptID, "error", err)
		return common.WrapError(err, "link file to receipt")
	}
	return nil
}

func scanFile(row rowScanner) (*entity.ReceiptFile, error) {
	var (
		f         entity.ReceiptFile
		receiptID sql.NullString
	)
	err := row.Scan(&f.ID, &f.ProfileID, &receiptID, &f.SourcePath, &f.Filename, &f.FileExt, &f.FileSize, &f.ContentHash, &f.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "scan file")
	}
	if receiptID.Valid {
		id, err := uuid.Parse(receiptID.String)
		if err == nil {
			f.ReceiptID = &id
		}
	}
	return &f, nil
}

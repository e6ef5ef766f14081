// Package ocr acquires raw text from receipt documents by shelling out
// to poppler and tesseract. It is the black-box boundary in front of
// the rule-based parser: everything here can fail or block, while the
// parser downstream never does.
package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"invoice-tracker/constants"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir         string
	HeicConverter       string // "heif-convert" | "magick" | "sips"
	EnableTSVConfidence bool

	PSM int // e.g. 6 for a uniform block of text
	OEM int // 1 = LSTM; 0 uses the engine default

	ArtifactCacheDir string
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE | constants.TXT
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr" | "plain-text" | "cache"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

type Extractor struct {
	cfg    Config
	runner Runner
	cache  *Cache
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.ArtifactCacheDir == "" {
		cfg.ArtifactCacheDir = "./tmp"
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// WithCache attaches a content-hash text cache; repeated extraction of
// an identical document returns the cached text without re-running OCR.
func (e *Extractor) WithCache(c *Cache) *Extractor {
	e.cache = c
	return e
}

// WithRunner swaps the command runner, for tests.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting ocr extraction", "path", path, "ext", ext)

	var hashHex string
	if e.cache != nil {
		if h, err := hashFile(path); err == nil {
			hashHex = h
			if text, ok := e.cache.Get(hashHex); ok {
				e.logger.Info("ocr cache hit", "path", path, "hash", hashHex[:12])
				return ExtractionResult{
					Text:       text,
					Pages:      1,
					SourceType: constants.MapExtToFormat(ext),
					Method:     "cache",
					Language:   e.cfg.TesseractLang,
					Duration:   time.Since(start),
					Confidence: heuristicConfidence(text),
				}, nil
			}
		}
	}

	var (
		res ExtractionResult
		err error
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.IMAGE:
		res, err = e.extractImageFile(ctx, path, ext)
	case constants.TXT:
		res, err = e.extractPlainText(path)
	default:
		e.logger.Error("unsupported ocr extension", "extension", ext)
		return ExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}

	if e.cache != nil && hashHex != "" {
		if cerr := e.cache.Put(hashHex, res.Text); cerr != nil {
			e.logger.Warn("ocr cache write failed", "error", cerr)
		}
	}
	return res, nil
}

func (e *Extractor) extractImageFile(ctx context.Context, path, ext string) (ExtractionResult, error) {
	var warns []string
	if constants.IsHEICExt(ext) {
		out, w, cleanup, err := convertHEICtoPNG(ctx, e.runner, e.cfg.HeicConverter, path)
		warns = append(warns, w...)
		if cleanup != nil {
			defer cleanup()
		}
		if err != nil {
			e.logger.Error("heic conversion failed", "path", path, "error", err)
			return ExtractionResult{SourceType: constants.IMAGE, Warnings: warns}, err
		}
		path = out
	}
	res, err := e.extractImage(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	return res, err
}

func (e *Extractor) extractPlainText(path string) (ExtractionResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ExtractionResult{SourceType: constants.TXT}, err
	}
	txt := Normalize(string(b))
	return ExtractionResult{
		Text:       txt,
		Pages:      1,
		SourceType: constants.TXT,
		Method:     "plain-text",
		Confidence: heuristicConfidence(txt),
	}, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

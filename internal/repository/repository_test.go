package repository_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/google/uuid"

	"invoice-tracker/constants"
	"invoice-tracker/internal/common"
	"invoice-tracker/internal/entity"
	"invoice-tracker/internal/parser"
	"invoice-tracker/internal/repository"
)

func fptr(v float64) *float64 { return &v }

var _ = Describe("Repository", func() {
	var (
		ctx      context.Context
		db       *repository.DB
		profiles repository.ProfileRepository
		files    repository.ReceiptFileRepository
		jobs     repository.ExtractJobRepository
		receipts repository.ReceiptRepository
		prof     *entity.Profile
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		db, err = repository.Open(ctx, common.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { db.Close(nil) })

		profiles = repository.NewProfileRepository(db, nil)
		files = repository.NewReceiptFileRepository(db, nil)
		jobs = repository.NewExtractJobRepository(db, nil)
		receipts = repository.NewReceiptRepository(db, nil)

		prof, err = profiles.Create(ctx, "Personal", "USD")
		Expect(err).NotTo(HaveOccurred())
	})

	addFile := func(path, body string) *entity.ReceiptFile {
		sum := sha256.Sum256([]byte(body))
		f, dedup, err := files.UpsertByHash(ctx, prof.ID, path, "", int64(len(body)), sum[:], time.Now().UTC())
		Expect(err).NotTo(HaveOccurred())
		Expect(dedup).To(BeFalse())
		return f
	}

	Describe("profiles", func() {
		It("round-trips a created profile", func() {
			got, err := profiles.GetByID(ctx, prof.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Personal"))
			Expect(got.DefaultCurrency).To(Equal("USD"))
		})

		It("defaults the currency to USD when none is given", func() {
			p, err := profiles.Create(ctx, "Work", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.DefaultCurrency).To(Equal("USD"))
		})

		It("returns ErrNotFound for an unknown id", func() {
			_, err := profiles.GetByID(ctx, uuid.New())
			Expect(err).To(MatchError(common.ErrNotFound))
		})

		It("reuses an existing profile by name", func() {
			p, err := profiles.GetOrCreateByName(ctx, "Personal", "EUR")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.ID).To(Equal(prof.ID))
			Expect(p.DefaultCurrency).To(Equal("USD"))
		})

		It("creates a missing profile by name", func() {
			p, err := profiles.GetOrCreateByName(ctx, "Household", "EUR")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.ID).NotTo(Equal(prof.ID))
			Expect(p.DefaultCurrency).To(Equal("EUR"))
		})

		It("lists profiles sorted by name", func() {
			_, err := profiles.Create(ctx, "Alpha", "USD")
			Expect(err).NotTo(HaveOccurred())

			all, err := profiles.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
			Expect(all[0].Name).To(Equal("Alpha"))
			Expect(all[1].Name).To(Equal("Personal"))
		})
	})

	Describe("receipt files", func() {
		It("records a new file with its hash", func() {
			sum := sha256.Sum256([]byte("receipt bytes"))
			f, dedup, err := files.UpsertByHash(ctx, prof.ID, "/in/box/Store Receipt.PDF", "", 13, sum[:], time.Now().UTC())
			Expect(err).NotTo(HaveOccurred())
			Expect(dedup).To(BeFalse())
			Expect(f.Filename).To(Equal("Store Receipt.PDF"))
			Expect(f.FileExt).To(Equal("pdf"))
			Expect(f.ContentHash).To(Equal(hex.EncodeToString(sum[:])))
			Expect(f.ReceiptID).To(BeNil())
		})

		It("deduplicates on (profile, hash) and returns the original row", func() {
			f := addFile("/in/a.pdf", "same bytes")

			sum := sha256.Sum256([]byte("same bytes"))
			again, dedup, err := files.UpsertByHash(ctx, prof.ID, "/elsewhere/copy.pdf", "", 10, sum[:], time.Now().UTC())
			Expect(err).NotTo(HaveOccurred())
			Expect(dedup).To(BeTrue())
			Expect(again.ID).To(Equal(f.ID))
			Expect(again.SourcePath).To(Equal("/in/a.pdf"))
		})

		It("does not deduplicate across profiles", func() {
			f := addFile("/in/a.pdf", "same bytes")

			other, err := profiles.Create(ctx, "Work", "USD")
			Expect(err).NotTo(HaveOccurred())

			sum := sha256.Sum256([]byte("same bytes"))
			g, dedup, err := files.UpsertByHash(ctx, other.ID, "/in/a.pdf", "", 10, sum[:], time.Now().UTC())
			Expect(err).NotTo(HaveOccurred())
			Expect(dedup).To(BeFalse())
			Expect(g.ID).NotTo(Equal(f.ID))
		})

		It("links a file to its receipt", func() {
			f := addFile("/in/a.pdf", "bytes")
			rid := uuid.New()

			Expect(files.SetReceiptID(ctx, f.ID, rid)).To(Succeed())

			got, err := files.GetByID(ctx, f.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ReceiptID).NotTo(BeNil())
			Expect(*got.ReceiptID).To(Equal(rid))
		})
	})

	Describe("extract jobs", func() {
		var file *entity.ReceiptFile

		BeforeEach(func() {
			file = addFile("/in/a.pdf", "pdf bytes")
		})

		It("starts a job in RUNNING", func() {
			job, err := jobs.Start(ctx, file.ID, prof.ID, "PDF")
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(string(constants.JobStatusRunning)))

			got, gotFile, err := jobs.GetWithFile(ctx, job.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(string(constants.JobStatusRunning)))
			Expect(got.Format).To(Equal("PDF"))
			Expect(got.FinishedAt).To(BeNil())
			Expect(gotFile.ID).To(Equal(file.ID))
		})

		It("records the OCR stage result", func() {
			job, err := jobs.Start(ctx, file.ID, prof.ID, "PDF")
			Expect(err).NotTo(HaveOccurred())

			Expect(jobs.FinishOCRSuccess(ctx, job.ID, "WHOLE FOODS\nTotal: $9.50", "pdf-text", 0.9)).To(Succeed())

			got, _, err := jobs.GetWithFile(ctx, job.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(string(constants.JobStatusOCROK)))
			Expect(got.OCRText).NotTo(BeNil())
			Expect(*got.OCRText).To(ContainSubstring("WHOLE FOODS"))
			Expect(got.OCRMethod).NotTo(BeNil())
			Expect(*got.OCRMethod).To(Equal("pdf-text"))
			Expect(got.Confidence).NotTo(BeNil())
			Expect(*got.Confidence).To(BeNumerically("~", 0.9, 0.001))
		})

		It("records the parse stage result", func() {
			job, err := jobs.Start(ctx, file.ID, prof.ID, "PDF")
			Expect(err).NotTo(HaveOccurred())
			Expect(jobs.FinishOCRSuccess(ctx, job.ID, "text", "pdf-text", 0.8)).To(Succeed())

			rid := uuid.New()
			extracted := json.RawMessage(`{"merchant":"Whole Foods"}`)
			Expect(jobs.FinishParseSuccess(ctx, job.ID, rid, extracted, true)).To(Succeed())

			got, _, err := jobs.GetWithFile(ctx, job.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(string(constants.JobStatusParseOK)))
			Expect(got.ReceiptID).NotTo(BeNil())
			Expect(*got.ReceiptID).To(Equal(rid))
			Expect(got.NeedsReview).To(BeTrue())
			Expect(got.FinishedAt).NotTo(BeNil())
			Expect(string(got.ExtractedJSON)).To(MatchJSON(`{"merchant":"Whole Foods"}`))
		})

		It("records a failure with its message", func() {
			job, err := jobs.Start(ctx, file.ID, prof.ID, "IMAGE")
			Expect(err).NotTo(HaveOccurred())

			Expect(jobs.FinishFailure(ctx, job.ID, "tesseract: exit status 1")).To(Succeed())

			got, _, err := jobs.GetWithFile(ctx, job.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(string(constants.JobStatusFailed)))
			Expect(got.ErrorMessage).NotTo(BeNil())
			Expect(*got.ErrorMessage).To(ContainSubstring("tesseract"))
			Expect(got.FinishedAt).NotTo(BeNil())
		})

		It("returns ErrNotFound for an unknown job", func() {
			_, _, err := jobs.GetWithFile(ctx, uuid.New())
			Expect(err).To(MatchError(common.ErrNotFound))
		})
	})

	Describe("receipts", func() {
		var file *entity.ReceiptFile

		record := parser.Receipt{
			Merchant: "ACME HARDWARE",
			Date:     "04/12/2025",
			Total:    fptr(12.50),
			Tax:      fptr(1.02),
			Items: []parser.LineItem{
				{Name: "Hammer", Price: fptr(9.99)},
				{Name: "Nails", Price: fptr(1.49)},
			},
			RawText: "ACME HARDWARE\n04/12/2025\nHammer 9.99\nNails 1.49\nTotal: $12.50\n",
		}

		BeforeEach(func() {
			file = addFile("/in/acme.pdf", "acme pdf bytes")
		})

		It("inserts a receipt with its items in order", func() {
			rec, err := receipts.UpsertFromRecord(ctx, &repository.UpsertReceiptRequest{
				File:         file,
				Record:       record,
				CurrencyCode: "USD",
				CategoryName: string(constants.Other),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.MerchantName).To(Equal("ACME HARDWARE"))
			Expect(rec.TxDateRaw).To(Equal("04/12/2025"))
			Expect(rec.Total).To(HaveValue(Equal(12.50)))
			Expect(rec.Tax).To(HaveValue(Equal(1.02)))
			Expect(rec.Subtotal).To(BeNil())
			Expect(rec.RawText).To(Equal(record.RawText))

			Expect(rec.Items).To(HaveLen(2))
			Expect(rec.Items[0].Position).To(Equal(0))
			Expect(rec.Items[0].Name).To(Equal("Hammer"))
			Expect(rec.Items[0].Price).To(HaveValue(Equal(9.99)))
			Expect(rec.Items[1].Name).To(Equal("Nails"))
		})

		It("replaces fields and items when reprocessing a linked file", func() {
			rec, err := receipts.UpsertFromRecord(ctx, &repository.UpsertReceiptRequest{
				File:         file,
				Record:       record,
				CurrencyCode: "USD",
				CategoryName: string(constants.Other),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(files.SetReceiptID(ctx, file.ID, rec.ID)).To(Succeed())

			linked, err := files.GetByID(ctx, file.ID)
			Expect(err).NotTo(HaveOccurred())

			updated := parser.Receipt{
				Merchant: "ACME HARDWARE STORE",
				Date:     "April 12, 2025",
				Total:    fptr(13.00),
				Items:    []parser.LineItem{{Name: "Hammer XL", Price: fptr(11.99)}},
				RawText:  "ACME HARDWARE STORE\nApril 12, 2025\nHammer XL 11.99\nTotal: $13.00\n",
			}
			rec2, err := receipts.UpsertFromRecord(ctx, &repository.UpsertReceiptRequest{
				File:         linked,
				Record:       updated,
				CurrencyCode: "USD",
				CategoryName: string(constants.Other),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec2.ID).To(Equal(rec.ID))
			Expect(rec2.MerchantName).To(Equal("ACME HARDWARE STORE"))
			Expect(rec2.Tax).To(BeNil())
			Expect(rec2.Items).To(HaveLen(1))
			Expect(rec2.Items[0].Name).To(Equal("Hammer XL"))
		})

		It("returns ErrNotFound for an unknown receipt", func() {
			_, err := receipts.GetByID(ctx, uuid.New())
			Expect(err).To(MatchError(common.ErrNotFound))
		})

		It("windows the listing on ingestion time", func() {
			_, err := receipts.UpsertFromRecord(ctx, &repository.UpsertReceiptRequest{
				File:         file,
				Record:       record,
				CurrencyCode: "USD",
				CategoryName: string(constants.Other),
			})
			Expect(err).NotTo(HaveOccurred())

			all, err := receipts.ListReceipts(ctx, prof.ID, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Items).To(HaveLen(2))

			past := time.Now().UTC().Add(-time.Hour)
			future := time.Now().UTC().Add(time.Hour)

			inWindow, err := receipts.ListReceipts(ctx, prof.ID, &past, &future)
			Expect(err).NotTo(HaveOccurred())
			Expect(inWindow).To(HaveLen(1))

			tooLate, err := receipts.ListReceipts(ctx, prof.ID, &future, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(tooLate).To(BeEmpty())

			tooEarly, err := receipts.ListReceipts(ctx, prof.ID, nil, &past)
			Expect(err).NotTo(HaveOccurred())
			Expect(tooEarly).To(BeEmpty())
		})

		It("scopes the listing to the requested profile", func() {
			_, err := receipts.UpsertFromRecord(ctx, &repository.UpsertReceiptRequest{
				File:         file,
				Record:       record,
				CurrencyCode: "USD",
				CategoryName: string(constants.Other),
			})
			Expect(err).NotTo(HaveOccurred())

			other, err := profiles.Create(ctx, "Work", "USD")
			Expect(err).NotTo(HaveOccurred())

			none, err := receipts.ListReceipts(ctx, other.ID, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(none).To(BeEmpty())
		})
	})
})

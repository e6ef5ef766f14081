package ocr_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"invoice-tracker/constants"
	"invoice-tracker/internal/ocr"
)

// scriptedRunner dispatches on the command name so specs can decide
// what each external binary "prints" without having it installed.
type scriptedRunner struct {
	handle func(name string, args []string) (stdout, stderr []byte, err error)
	calls  []string
}

func (r *scriptedRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, name)
	return r.handle(name, args)
}

var _ = Describe("Extractor", func() {
	var (
		tmpDir string
		ex     *ocr.Extractor
		runner *scriptedRunner
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		runner = &scriptedRunner{
			handle: func(name string, args []string) ([]byte, []byte, error) {
				return nil, nil, fmt.Errorf("unexpected command %q", name)
			},
		}
		ex = ocr.NewExtractor(ocr.Config{ArtifactCacheDir: tmpDir}, nil).WithRunner(runner)
	})

	When("extracting a plain-text file", func() {
		It("reads and normalizes the contents without any external command", func() {
			path := filepath.Join(tmpDir, "receipt.txt")
			raw := "ACME STORE\r\n\r\n\r\n\r\nTotal:   $12.50   \n"
			Expect(os.WriteFile(path, []byte(raw), 0o644)).To(Succeed())

			res, err := ex.Extract(ctx, path)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.SourceType).To(Equal(constants.TXT))
			Expect(res.Method).To(Equal("plain-text"))
			Expect(res.Text).To(Equal("ACME STORE\n\nTotal: $12.50"))
			Expect(runner.calls).To(BeEmpty())
		})

		It("scores receipt-like text higher than arbitrary prose", func() {
			receiptPath := filepath.Join(tmpDir, "a.txt")
			prosePath := filepath.Join(tmpDir, "b.txt")
			Expect(os.WriteFile(receiptPath, []byte("Date: 04/12/2025\nTotal: $12.50\n"), 0o644)).To(Succeed())
			Expect(os.WriteFile(prosePath, []byte("hello world\n"), 0o644)).To(Succeed())

			r1, err := ex.Extract(ctx, receiptPath)
			Expect(err).NotTo(HaveOccurred())
			r2, err := ex.Extract(ctx, prosePath)
			Expect(err).NotTo(HaveOccurred())
			Expect(r1.Confidence).To(BeNumerically(">", r2.Confidence))
		})
	})

	When("extracting a PDF with an embedded text layer", func() {
		It("uses pdftotext output and never rasterizes", func() {
			embedded := "ACME HARDWARE\nDate: 04/12/2025\nTotal: $12.50\nThanks for shopping with us today"
			runner.handle = func(name string, args []string) ([]byte, []byte, error) {
				Expect(name).To(Equal("pdftotext"))
				Expect(args).To(ContainElement("-layout"))
				return []byte(embedded), nil, nil
			}

			res, err := ex.Extract(ctx, filepath.Join(tmpDir, "inv.pdf"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Method).To(Equal("pdf-text"))
			Expect(res.SourceType).To(Equal(constants.PDF))
			Expect(res.Text).To(ContainSubstring("ACME HARDWARE"))
			Expect(runner.calls).To(Equal([]string{"pdftotext"}))
		})
	})

	When("the embedded text layer is too sparse", func() {
		It("falls back to pdftoppm plus per-page tesseract", func() {
			runner.handle = func(name string, args []string) ([]byte, []byte, error) {
				switch name {
				case "pdftotext":
					return []byte("  \n"), nil, nil
				case "pdftoppm":
					// last arg is the output prefix; pretend we rendered two pages
					prefix := args[len(args)-1]
					Expect(os.WriteFile(prefix+"-1.png", []byte("png"), 0o644)).To(Succeed())
					Expect(os.WriteFile(prefix+"-2.png", []byte("png"), 0o644)).To(Succeed())
					return nil, nil, nil
				case "tesseract":
					page := filepath.Base(args[0])
					return []byte("text of " + page), nil, nil
				}
				return nil, nil, fmt.Errorf("unexpected command %q", name)
			}

			res, err := ex.Extract(ctx, filepath.Join(tmpDir, "scan.pdf"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Method).To(Equal("pdf-ocr"))
			Expect(res.Pages).To(Equal(2))
			Expect(res.Text).To(ContainSubstring("text of page-1.png"))
			Expect(res.Text).To(ContainSubstring("text of page-2.png"))
			Expect(runner.calls).To(Equal([]string{"pdftotext", "pdftoppm", "tesseract", "tesseract"}))
		})

		It("caps the rendered pages at MaxPages", func() {
			ex = ocr.NewExtractor(ocr.Config{ArtifactCacheDir: tmpDir, MaxPages: 1}, nil).WithRunner(runner)
			runner.handle = func(name string, args []string) ([]byte, []byte, error) {
				switch name {
				case "pdftotext":
					return nil, nil, nil
				case "pdftoppm":
					prefix := args[len(args)-1]
					Expect(os.WriteFile(prefix+"-1.png", []byte("png"), 0o644)).To(Succeed())
					Expect(os.WriteFile(prefix+"-2.png", []byte("png"), 0o644)).To(Succeed())
					return nil, nil, nil
				case "tesseract":
					return []byte("page text"), nil, nil
				}
				return nil, nil, fmt.Errorf("unexpected command %q", name)
			}

			res, err := ex.Extract(ctx, filepath.Join(tmpDir, "scan.pdf"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Pages).To(Equal(1))
			Expect(strings.Count(runner.callsJoined(), "tesseract")).To(Equal(1))
		})
	})

	When("extracting an image", func() {
		It("runs tesseract against the file", func() {
			runner.handle = func(name string, args []string) ([]byte, []byte, error) {
				Expect(name).To(Equal("tesseract"))
				Expect(args[0]).To(HaveSuffix("photo.jpg"))
				Expect(args).To(ContainElement("eng"))
				return []byte("CORNER CAFE\nTotal 4.00\n"), nil, nil
			}

			res, err := ex.Extract(ctx, filepath.Join(tmpDir, "photo.jpg"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Method).To(Equal("image-ocr"))
			Expect(res.SourceType).To(Equal(constants.IMAGE))
			Expect(res.Text).To(ContainSubstring("CORNER CAFE"))
		})
	})

	When("the extension is not supported", func() {
		It("returns an error without running anything", func() {
			_, err := ex.Extract(ctx, filepath.Join(tmpDir, "notes.docx"))
			Expect(err).To(MatchError(ContainSubstring("unsupported extension")))
			Expect(runner.calls).To(BeEmpty())
		})
	})

	When("a cache is attached", func() {
		It("serves repeated extractions of identical content from the cache", func() {
			cache, err := ocr.OpenCache(filepath.Join(tmpDir, "cache", "ocr.db"))
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(cache.Close)
			ex = ocr.NewExtractor(ocr.Config{ArtifactCacheDir: tmpDir}, nil).
				WithRunner(runner).
				WithCache(cache)

			path := filepath.Join(tmpDir, "receipt.txt")
			Expect(os.WriteFile(path, []byte("Total: $9.99\n"), 0o644)).To(Succeed())

			first, err := ex.Extract(ctx, path)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Method).To(Equal("plain-text"))

			second, err := ex.Extract(ctx, path)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Method).To(Equal("cache"))
			Expect(second.Text).To(Equal(first.Text))

			// same bytes under a different name still hit
			copyPath := filepath.Join(tmpDir, "copy.txt")
			Expect(os.WriteFile(copyPath, []byte("Total: $9.99\n"), 0o644)).To(Succeed())
			third, err := ex.Extract(ctx, copyPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(third.Method).To(Equal("cache"))
		})
	})
})

func (r *scriptedRunner) callsJoined() string {
	return strings.Join(r.calls, " ")
}

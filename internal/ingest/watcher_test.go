package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"invoice-tracker/internal/ingest"
)

var _ = Describe("StartWatcher", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		tmpDir string
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		tmpDir = GinkgoT().TempDir()
		DeferCleanup(cancel)
	})

	It("requires at least one root", func() {
		_, _, err := ingest.StartWatcher(ctx, ingest.WatchConfig{}, nil)
		Expect(err).To(MatchError(ContainSubstring("no roots provided")))
	})

	It("emits pre-existing files when InitialScan is set", func() {
		path := filepath.Join(tmpDir, "existing.txt")
		Expect(os.WriteFile(path, []byte("x"), 0o644)).To(Succeed())

		evCh, _, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{tmpDir},
			InitialScan: true,
		}, nil)
		Expect(err).NotTo(HaveOccurred())
		Eventually(evCh).Should(Receive(Equal(path)))
	})

	It("emits newly created receipt files and ignores others", func() {
		evCh, _, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:    []string{tmpDir},
			Debounce: 10 * time.Millisecond,
		}, nil)
		Expect(err).NotTo(HaveOccurred())

		ignored := filepath.Join(tmpDir, "note.docx")
		wanted := filepath.Join(tmpDir, "new.txt")
		Expect(os.WriteFile(ignored, []byte("x"), 0o644)).To(Succeed())
		Expect(os.WriteFile(wanted, []byte("Total 5.00"), 0o644)).To(Succeed())

		Eventually(evCh, "3s").Should(Receive(Equal(wanted)))
		Consistently(evCh, "200ms").ShouldNot(Receive(Equal(ignored)))
	})

	It("closes the event channel when the context is cancelled", func() {
		evCh, _, err := ingest.StartWatcher(ctx, ingest.WatchConfig{Roots: []string{tmpDir}}, nil)
		Expect(err).NotTo(HaveOccurred())

		cancel()
		Eventually(evCh, "2s").Should(BeClosed())
	})
})

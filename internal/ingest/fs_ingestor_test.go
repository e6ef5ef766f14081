package ingest_test

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"invoice-tracker/constants"
	"invoice-tracker/internal/common"
	"invoice-tracker/internal/entity"
	"invoice-tracker/internal/ingest"
)

type memProfiles struct {
	byID map[uuid.UUID]*entity.Profile
}

func (m *memProfiles) Create(_ context.Context, name, cur string) (*entity.Profile, error) {
	p := &entity.Profile{ID: uuid.New(), Name: name, DefaultCurrency: cur}
	m.byID[p.ID] = p
	return p, nil
}

func (m *memProfiles) GetByID(_ context.Context, id uuid.UUID) (*entity.Profile, error) {
	if p, ok := m.byID[id]; ok {
		return p, nil
	}
	return nil, common.ErrNotFound
}

func (m *memProfiles) GetOrCreateByName(ctx context.Context, name, cur string) (*entity.Profile, error) {
	for _, p := range m.byID {
		if p.Name == name {
			return p, nil
		}
	}
	return m.Create(ctx, name, cur)
}

func (m *memProfiles) List(_ context.Context) ([]*entity.Profile, error) {
	out := make([]*entity.Profile, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out, nil
}

type memFiles struct {
	byHash map[string]*entity.ReceiptFile
}

func (m *memFiles) UpsertByHash(_ context.Context, profileID uuid.UUID, path, ext string, size int64, hash []byte, uploadedAt time.Time) (*entity.ReceiptFile, bool, error) {
	key := profileID.String() + "/" + hex.EncodeToString(hash)
	if f, ok := m.byHash[key]; ok {
		return f, true, nil
	}
	f := &entity.ReceiptFile{
		ID:          uuid.New(),
		ProfileID:   profileID,
		SourcePath:  path,
		Filename:    filepath.Base(path),
		FileExt:     constants.NormalizeExt(ext),
		FileSize:    size,
		ContentHash: hex.EncodeToString(hash),
		UploadedAt:  uploadedAt,
	}
	m.byHash[key] = f
	return f, false, nil
}

func (m *memFiles) GetByID(_ context.Context, id uuid.UUID) (*entity.ReceiptFile, error) {
	for _, f := range m.byHash {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memFiles) SetReceiptID(_ context.Context, fileID, receiptID uuid.UUID) error {
	for _, f := range m.byHash {
		if f.ID == fileID {
			id := receiptID
			f.ReceiptID = &id
			return nil
		}
	}
	return common.ErrNotFound
}

var _ = Describe("FSIngestor", func() {
	var (
		ctx       context.Context
		tmpDir    string
		profiles  *memProfiles
		files     *memFiles
		ingestor  *ingest.FSIngestor
		profileID uuid.UUID
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		profiles = &memProfiles{byID: map[uuid.UUID]*entity.Profile{}}
		files = &memFiles{byHash: map[string]*entity.ReceiptFile{}}
		ingestor = ingest.NewFSIngestor(profiles, files, nil)

		p, err := profiles.Create(ctx, "default", "USD")
		Expect(err).NotTo(HaveOccurred())
		profileID = p.ID
	})

	write := func(rel, content string) string {
		path := filepath.Join(tmpDir, rel)
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	Describe("IngestPath", func() {
		It("records a new file with its content hash", func() {
			path := write("r1.txt", "Total: $5.00\n")

			res, err := ingestor.IngestPath(ctx, profileID, path)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Deduplicated).To(BeFalse())
			Expect(res.FileExt).To(Equal("txt"))
			Expect(res.HashHex).To(HaveLen(64))
			Expect(res.FileID).NotTo(Equal(uuid.Nil))
		})

		It("deduplicates identical content under a different name", func() {
			p1 := write("a.txt", "same bytes")
			p2 := write("b.txt", "same bytes")

			first, err := ingestor.IngestPath(ctx, profileID, p1)
			Expect(err).NotTo(HaveOccurred())
			second, err := ingestor.IngestPath(ctx, profileID, p2)
			Expect(err).NotTo(HaveOccurred())

			Expect(second.Deduplicated).To(BeTrue())
			Expect(second.FileID).To(Equal(first.FileID))
		})

		It("rejects unsupported extensions", func() {
			path := write("notes.docx", "not a receipt")
			_, err := ingestor.IngestPath(ctx, profileID, path)
			Expect(err).To(MatchError(ContainSubstring("unsupported or missing extension")))
		})

		It("rejects an unknown profile", func() {
			path := write("r.txt", "x")
			_, err := ingestor.IngestPath(ctx, uuid.New(), path)
			Expect(err).To(MatchError(ContainSubstring("check profile")))
		})
	})

	Describe("IngestDirectory", func() {
		It("walks recursively, counting matches and skipping foreign files", func() {
			write("r1.txt", Receipt1)
			write("sub/r2.pdf", "%PDF-1.4 fake")
			write("sub/skip.docx", "nope")
			write("r1-copy.txt", Receipt1)

			results, stats, err := ingestor.IngestDirectory(ctx, profileID, tmpDir, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Matched).To(Equal(uint32(3)))
			Expect(stats.Succeeded).To(Equal(uint32(3)))
			Expect(stats.Deduplicated).To(Equal(uint32(1)))
			Expect(stats.Failed).To(BeZero())
			Expect(results).To(HaveLen(3))
		})

		It("skips hidden files and directories when asked", func() {
			write(".hidden.txt", "secret")
			write(".trash/r.txt", "discarded")
			write("visible.txt", "kept")

			_, stats, err := ingestor.IngestDirectory(ctx, profileID, tmpDir, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Matched).To(Equal(uint32(1)))
			Expect(stats.Succeeded).To(Equal(uint32(1)))
		})

		It("requires a root path", func() {
			_, _, err := ingestor.IngestDirectory(ctx, profileID, "  ", true)
			Expect(err).To(MatchError(ContainSubstring("root_path is required")))
		})

		It("keeps walking past files that fail", func() {
			write("ok.txt", "fine")
			badProfile := uuid.New()

			_, stats, err := ingestor.IngestDirectory(ctx, badProfile, tmpDir, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Failed).To(Equal(uint32(1)))
			Expect(stats.Succeeded).To(BeZero())
		})
	})
})

const Receipt1 = "ACME HARDWARE\n04/12/2025\nHammer 9.99\nTotal: $12.50\n"

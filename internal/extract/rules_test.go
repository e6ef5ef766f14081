package extract_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"invoice-tracker/internal/extract"
)

var _ = Describe("RulesExtractor", func() {
	var (
		ctx context.Context
		ex  *extract.RulesExtractor
	)

	BeforeEach(func() {
		ctx = context.Background()
		ex = extract.NewRulesExtractor(extract.ExtraLabels{}, nil)
	})

	It("never fails, even on empty or garbage text", func() {
		for _, txt := range []string{"", "\n\n\n", "@@@@ ???? ####"} {
			res, err := ex.ExtractFields(ctx, txt)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Engine).To(Equal("rules/v1"))
			Expect(res.Record.RawText).To(Equal(txt))
		}
	})

	It("serializes the record with the wire field names", func() {
		res, err := ex.ExtractFields(ctx, "ACME HARDWARE\nDate: 04/12/2025\nTotal: $12.50\n")
		Expect(err).NotTo(HaveOccurred())

		var m map[string]any
		Expect(json.Unmarshal(res.JSON, &m)).To(Succeed())
		Expect(m).To(HaveKeyWithValue("merchant", "ACME HARDWARE"))
		Expect(m).To(HaveKeyWithValue("date", "04/12/2025"))
		Expect(m).To(HaveKeyWithValue("total", 12.50))
		Expect(m).To(HaveKey("raw_text"))
	})

	It("scores richer extractions higher", func() {
		full, err := ex.ExtractFields(ctx, "ACME HARDWARE\n04/12/2025\nHammer 9.99\nTotal: $12.50\n")
		Expect(err).NotTo(HaveOccurred())
		sparse, err := ex.ExtractFields(ctx, "illegible smudge\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(full.Confidence).To(BeNumerically(">", sparse.Confidence))
	})

	When("extra labels are configured", func() {
		BeforeEach(func() {
			ex = extract.NewRulesExtractor(extract.ExtraLabels{
				Total: []string{"grand sum"},
				Tax:   []string{"mwst"},
			}, nil)
		})

		It("falls back to them when the built-in tables find nothing", func() {
			res, err := ex.ExtractFields(ctx, "STORE\nGrand Sum: $40.00\nMwSt 3.20\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Record.Total).To(HaveValue(Equal(40.00)))
			Expect(res.Record.Tax).To(HaveValue(Equal(3.20)))
		})

		It("never overrides a built-in match", func() {
			res, err := ex.ExtractFields(ctx, "STORE\nTotal: $12.50\nGrand Sum: $99.99\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Record.Total).To(HaveValue(Equal(12.50)))
		})
	})
})

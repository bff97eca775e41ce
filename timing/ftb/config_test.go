package ftb_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ftbsim/timing/ftb"
)

var _ = Describe("Config", func() {
	It("should validate the default geometry", func() {
		cfg := ftb.DefaultConfig()
		Expect(cfg.Validate()).To(Succeed())
		Expect(cfg.NumSets).To(Equal(512))
		Expect(cfg.NumWays).To(Equal(4))
		Expect(cfg.TagBits).To(Equal(20))
	})

	It("should reject a non-power-of-2 set count", func() {
		cfg := ftb.DefaultConfig()
		cfg.NumSets = 500
		Expect(cfg.Validate()).NotTo(Succeed())
	})

	It("should reject a non-power-of-2 associativity", func() {
		cfg := ftb.DefaultConfig()
		cfg.NumWays = 3
		Expect(cfg.Validate()).NotTo(Succeed())
	})

	It("should reject an out-of-range tag width", func() {
		cfg := ftb.DefaultConfig()
		cfg.TagBits = 0
		Expect(cfg.Validate()).NotTo(Succeed())

		cfg.TagBits = 65
		Expect(cfg.Validate()).NotTo(Succeed())
	})

	Describe("LoadConfig", func() {
		It("should overlay file values onto the defaults", func() {
			path := filepath.Join(GinkgoT().TempDir(), "ftb.json")
			err := os.WriteFile(path, []byte(`{"num_sets": 256, "tag_bits": 16}`), 0644)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := ftb.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.NumSets).To(Equal(256))
			Expect(cfg.TagBits).To(Equal(16))
			Expect(cfg.NumWays).To(Equal(4)) // default preserved
		})

		It("should fail on a missing file", func() {
			_, err := ftb.LoadConfig("/nonexistent/ftb.json")
			Expect(err).To(HaveOccurred())
		})

		It("should fail on invalid values", func() {
			path := filepath.Join(GinkgoT().TempDir(), "ftb.json")
			err := os.WriteFile(path, []byte(`{"num_ways": 5}`), 0644)
			Expect(err).NotTo(HaveOccurred())

			_, err = ftb.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})
	})
})

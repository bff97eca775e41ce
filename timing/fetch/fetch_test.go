package fetch_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ftbsim/timing/fetch"
	"github.com/sarchlab/ftbsim/timing/ftb"
)

// staticProgram maps block addresses to fixed per-visit outcomes.
type staticProgram map[uint64]fetch.BlockInfo

func (p staticProgram) Block(addr uint64) fetch.BlockInfo {
	return p[addr]
}

var _ = Describe("BlockInfo", func() {
	It("should follow the lowest-offset taken branch", func() {
		info := fetch.BlockInfo{
			Brs: [ftb.NumBranchSlots]ftb.BranchSlot{
				{Offset: 6, Target: 0xA000, Valid: true},
				{Offset: 2, Target: 0xB000, Valid: true},
			},
			Taken:       [ftb.NumBranchSlots]bool{true, true},
			Jmp:         ftb.BranchSlot{Offset: 9, Target: 0xC000, Valid: true},
			Fallthrough: 0x1020,
		}

		Expect(info.NextAddr()).To(Equal(uint64(0xB000)))

		info.Taken[1] = false
		Expect(info.NextAddr()).To(Equal(uint64(0xA000)))

		info.Taken[0] = false
		Expect(info.NextAddr()).To(Equal(uint64(0xC000)))

		info.Jmp.Valid = false
		Expect(info.NextAddr()).To(Equal(uint64(0x1020)))
	})
})

var _ = Describe("FetchUnit", func() {
	var (
		config fetch.Config
		prog   staticProgram
		unit   *fetch.FetchUnit
	)

	BeforeEach(func() {
		config = fetch.DefaultConfig()
		config.ICache.MissPenalty = 2
		config.MispredictPenalty = 4

		// A two-block loop: 0x1000 branches to 0x3000, which jumps back.
		prog = staticProgram{
			0x1000: {
				Brs: [ftb.NumBranchSlots]ftb.BranchSlot{
					{Offset: 2, Target: 0x3000, Valid: true},
				},
				Taken:       [ftb.NumBranchSlots]bool{true},
				Fallthrough: 0x1020,
			},
			0x3000: {
				Jmp:         ftb.BranchSlot{Offset: 5, Target: 0x1000, Valid: true},
				Fallthrough: 0x3020,
			},
		}

		unit = fetch.New(config, prog)
		unit.SetPC(0x1000)
	})

	It("should resolve blocks and follow the actual control flow", func() {
		unit.Run(200)

		stats := unit.Stats()
		Expect(stats.Blocks).To(BeNumerically(">", 10))
		// The loop only ever fetches its two blocks.
		Expect(unit.PC()).To(BeElementOf(uint64(0x1000), uint64(0x3000)))
	})

	It("should converge onto the loop after warm-up", func() {
		unit.Run(1000)

		stats := unit.Stats()
		// Each block mispredicts only while its entry is untrained.
		Expect(stats.TargetMispredicts).To(BeNumerically("<=", 4))
		Expect(stats.FTBHitRate()).To(BeNumerically(">", 80))
		// The always-taken branch never fools the direction predictor.
		Expect(unit.Predictor().Stats().Accuracy()).To(BeNumerically("~", 100.0, 0.01))
	})

	It("should train the table with the resolved block structure", func() {
		unit.Run(1000)

		buffer := unit.FTB()
		Expect(buffer.Stats().Updates).To(BeNumerically(">", 0))

		// Probe the trained table directly.
		Expect(buffer.Lookup(0x1000)).To(BeTrue())
		buffer.Tick()
		pred := buffer.PredictionAt(ftb.S1)

		Expect(pred.Hit).To(BeTrue())
		Expect(pred.Entry.Brs[0].Offset).To(Equal(uint8(2)))
		Expect(pred.Entry.Brs[0].Target).To(Equal(uint64(0x3000)))
		Expect(pred.Entry.Fallthrough).To(Equal(uint64(0x1020)))
		Expect(pred.Entry.CarryFallthrough).To(BeFalse())
		Expect(pred.Entry.Oversized).To(BeFalse())
	})

	It("should stall the stream on instruction-cache misses", func() {
		unit.Run(50)

		Expect(unit.ICache().Stats().Misses).To(BeNumerically(">", 0))
		Expect(unit.Stats().StallCycles).To(BeNumerically(">", 0))
	})

	It("should count repeat updates for the looping blocks", func() {
		unit.Run(1000)

		ftbStats := unit.FTB().Stats()
		Expect(ftbStats.UpdateNewAddr).To(Equal(uint64(2)))
		Expect(ftbStats.UpdateRepeatAddr).To(BeNumerically(">", 0))
	})
})

var _ = Describe("SyntheticProgram", func() {
	cfg := ftb.DefaultConfig()

	It("should be reproducible for a fixed seed", func() {
		a := fetch.NewSyntheticProgram(64, 42, 0x10000, cfg)
		b := fetch.NewSyntheticProgram(64, 42, 0x10000, cfg)

		for i := 0; i < 200; i++ {
			addr := 0x10000 + uint64(i%64)*uint64(cfg.BlockBytes)
			Expect(a.Block(addr)).To(Equal(b.Block(addr)))
		}
	})

	It("should keep all control flow inside the program range", func() {
		p := fetch.NewSyntheticProgram(64, 7, 0x10000, cfg)
		lo := uint64(0x10000)
		hi := lo + 64*uint64(cfg.BlockBytes)

		for i := 0; i < 64; i++ {
			addr := lo + uint64(i)*uint64(cfg.BlockBytes)
			info := p.Block(addr)
			for _, br := range info.Brs {
				if br.Valid {
					Expect(br.Target).To(And(
						BeNumerically(">=", lo),
						BeNumerically("<", hi),
					))
				}
			}
			if info.Jmp.Valid {
				Expect(info.Jmp.Target).To(And(
					BeNumerically(">=", lo),
					BeNumerically("<", hi),
				))
			}
		}
	})

	It("should handle single-instruction blocks", func() {
		small := ftb.DefaultConfig()
		small.BlockBytes = 2
		Expect(small.Validate()).To(Succeed())

		p := fetch.NewSyntheticProgram(8, 1, 0x10000, small)

		for i := 0; i < 8; i++ {
			info := p.Block(0x10000 + uint64(i)*2)
			if info.Brs[0].Valid {
				Expect(info.Brs[0].Offset).To(Equal(uint8(0)))
			}
			Expect(info.Brs[1].Valid).To(BeFalse())
		}
	})

	It("should drive a fetch unit without leaving the address range", func() {
		config := fetch.DefaultConfig()
		p := fetch.NewSyntheticProgram(64, 1, 0x10000, config.FTB)

		unit := fetch.New(config, p)
		unit.SetPC(0x10000)
		unit.Run(2000)

		Expect(unit.Stats().Blocks).To(BeNumerically(">", 50))
	})
})

package trace

import "github.com/pdonahue-ventana/riscv-trace-decoder/riscv"

// PacketProcessor classifies and applies one te_inst packet at a time to a
// State, per spec.md §4.5. It is grounded directly on the reference
// implementation's te_process_te_inst()/process_support().
type PacketProcessor struct {
	state    *State
	cache    *riscv.DecodeCache
	steps    *StepEngine
	follower *Follower
	elements ElementSink
	logger   logger
	stats    *Stats
}

func newPacketProcessor(state *State, cache *riscv.DecodeCache, steps *StepEngine, follower *Follower, elements ElementSink, log logger, stats *Stats) *PacketProcessor {
	return &PacketProcessor{state: state, cache: cache, steps: steps, follower: follower, elements: elements, logger: log, stats: stats}
}

// Process applies pkt to the processor's State.
func (p *PacketProcessor) Process(pkt Packet) error {
	p.stats.ByFormat[pkt.Format]++

	if pkt.Format == Format3Sync {
		p.stats.BySubformat[pkt.Subformat]++
		return p.processSync(pkt)
	}
	return p.processNonSync(pkt)
}

func (p *PacketProcessor) processSync(pkt Packet) error {
	s := p.state
	s.NonSyncPackets = 0

	switch pkt.Subformat {
	case SubformatSupport:
		return p.processSupport(pkt)
	case SubformatContext:
		return nil
	}

	s.InferredAddress = false
	s.LastSentAddr = pkt.Address << s.Discovery.IaddressLSB
	s.Privilege = pkt.Privilege

	if pkt.Subformat == SubformatException || s.StartOfTrace {
		s.Predictor.Branches = 0
		s.Predictor.BranchMap = 0
	}

	if s.Predictor.MissPredictCarryOut {
		s.Predictor.MissPredictCarryOut = false
		s.Predictor.MissPredictCarryIn = true
	} else {
		instr, err := s.fetch(p.cache, s.LastSentAddr)
		if err != nil {
			return err
		}
		if instr.IsBranch() {
			s.Predictor.FoldSingleBit(pkt.Branch)
		}
	}

	if pkt.Subformat == SubformatException {
		p.notify(Element{Type: ElementException, StartPC: s.LastSentAddr, Privilege: s.Privilege})
	}

	if pkt.Subformat == SubformatStart && s.StartOfTrace {
		p.notify(Element{Type: ElementTraceOn, StartPC: s.LastSentAddr, Privilege: s.Privilege})
	}

	if pkt.Subformat == SubformatStart && !s.StartOfTrace {
		if err := p.followAndReportRange(s.LastSentAddr, pkt.Format, pkt.Updiscon); err != nil {
			return err
		}
	} else {
		// First packet of a trace (or an exception): seed the PC directly
		// rather than following a path to it.
		s.LastPC = s.PC
		s.PC = s.LastSentAddr
		if err := p.steps.disseminate(s); err != nil {
			return err
		}
		// Force last_pc to a value that can never satisfy
		// isSequentialJump's auipc/lui-feeds-jalr test, since we do not
		// actually know the previous instruction here.
		s.LastPC = s.PC
	}

	s.StartOfTrace = false

	if pkt.Subformat == SubformatStart || pkt.Subformat == SubformatException {
		s.ReturnStack.Reset()
	}

	return nil
}

func (p *PacketProcessor) processSupport(pkt Packet) error {
	support := pkt.Support
	s := p.state

	if support.QualStatus == QualStatusLost {
		return fatal(FatalUnhandledQualStatus, nil, "trace qualification status LOST is not handled")
	}

	if p.logger != nil {
		p.logger.Debugf("support packet: options %+v -> %+v", s.Options, support.Options)
	}
	s.Options = support.Options

	if support.QualStatus == QualStatusEndedUpd || support.QualStatus == QualStatusEndedRep {
		s.StartOfTrace = true
		p.notify(Element{Type: ElementEOTrace})
	}

	if support.QualStatus == QualStatusEndedUpd && s.InferredAddress {
		previousAddress := s.PC
		s.InferredAddress = false
		for {
			stopHere, err := p.steps.Step(s, previousAddress)
			if err != nil {
				return err
			}
			if stopHere {
				return nil
			}
		}
	}
	return nil
}

func (p *PacketProcessor) processNonSync(pkt Packet) error {
	s := p.state
	s.NonSyncPackets++

	s.Predictor.MissPredictCarryIn = s.Predictor.MissPredictCarryOut
	s.Predictor.MissPredictCarryOut = false

	if s.StartOfTrace {
		return fatal(FatalNonSyncBeforeSync, nil, "expecting trace to start with a synchronization packet")
	}

	if pkt.WithAddress {
		shifted := pkt.Address << s.Discovery.IaddressLSB
		if s.Options.FullAddress {
			s.LastSentAddr = shifted
		} else {
			s.LastSentAddr += shifted
		}
	}

	s.Predictor.CorrectPredictions = 0

	switch {
	case pkt.Format == Format0Extension && pkt.Extension == ExtensionBranchPredictor:
		p.stats.ByExtension[ExtensionBranchPredictor]++
		s.Predictor.UseBmapFirst = s.Predictor.Branches != 0 && !s.Predictor.MissPredictCarryIn
		s.Predictor.CorrectPredictions = uint32(pkt.CorrectPredictions)
		s.Predictor.Branches += uint32(pkt.CorrectPredictions)
		if !pkt.WithAddress {
			s.Predictor.Branches++
			s.StopAtLastBranch = true
			s.Predictor.MissPredictCarryOut = true
		}

	case pkt.Format == Format0Extension && pkt.Extension == ExtensionJumpTargetCache:
		p.stats.ByExtension[ExtensionJumpTargetCache]++
		s.StopAtLastBranch = false
		target, ok := s.JTC.ReadIndex(pkt.JtcIndex)
		if !ok {
			return fatal(FatalInvalidJtcIndex, nil, "jump-target-cache index is out of range or was never written")
		}
		s.LastSentAddr = target
		if pkt.Branches != 0 {
			s.Predictor.FoldMap(pkt.BranchMap, uint32(pkt.Branches))
		}

	default:
		if pkt.Format == Format2Addr || pkt.WithAddress {
			s.StopAtLastBranch = false
			if s.Options.JumpTargetCache {
				s.JTC.Write(s.LastSentAddr)
			}
		}
		if pkt.Format == Format1Diff {
			s.StopAtLastBranch = !pkt.WithAddress
			branches := uint32(pkt.Branches)
			if branches == 0 {
				branches = maxNumBranches
			}
			s.Predictor.FoldMap(pkt.BranchMap, branches)
		}
	}

	return p.followAndReportRange(s.LastSentAddr, pkt.Format, pkt.Updiscon)
}

// followAndReportRange drives the follower to address and, on success,
// reports the PC range it walked as an ElementAddrRange, matching the
// reference decoder's ADDR_RANGE debug line (one per waypoint reached).
func (p *PacketProcessor) followAndReportRange(address riscv.Address, format Format, updiscon bool) error {
	start := p.state.PC
	if err := p.follower.Follow(p.state, address, format, updiscon); err != nil {
		return err
	}
	p.notify(Element{Type: ElementAddrRange, StartPC: start, EndPC: p.state.PC, Privilege: p.state.Privilege})
	return nil
}

func (p *PacketProcessor) notify(e Element) {
	if p.elements != nil {
		p.elements.Notify(e)
	}
}

// maxNumBranches is folded into the branch count when a format-1 packet
// reports zero branches, which the protocol defines to mean "a full
// branch map" rather than literally zero, matching spec.md's boundary
// behavior note and the reference decoder's TE_MAX_NUM_BRANCHES constant.
const maxNumBranches = 31

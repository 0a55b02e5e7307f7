// Command rvtrclister decodes a JSON stream of te_inst packets against a
// flat binary memory image and prints the reconstructed instruction trace,
// in the style of the teacher's trc_pkt_lister: a thin CLI shell around the
// library decoder, with flags for the memory image, the packet stream, an
// optional discovery-geometry config file, and a verbose/debug mode.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pdonahue-ventana/riscv-trace-decoder/riscv"
	"github.com/pdonahue-ventana/riscv-trace-decoder/trace"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "rvtrclister:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("rvtrclister", flag.ContinueOnError)
	fs.SetOutput(stderr)
	memPath := fs.String("mem", "", "flat binary memory image (required)")
	memBase := fs.Uint64("mem-base", 0, "load address of the memory image")
	packetsPath := fs.String("packets", "", "JSON array of te_inst packets (required)")
	configPath := fs.String("config", "", "ini-style discovery-geometry config file (optional)")
	verbose := fs.Bool("v", false, "enable debug logging")
	showStats := fs.Bool("stats", false, "print decode statistics at the end")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *memPath == "" || *packetsPath == "" {
		fs.Usage()
		return fmt.Errorf("-mem and -packets are required")
	}

	image, err := loadMemImage(*memPath, *memBase)
	if err != nil {
		return err
	}
	packets, err := loadPackets(*packetsPath)
	if err != nil {
		return err
	}

	discovery := trace.DefaultDiscoveryResponse()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			return err
		}
		discovery, err = trace.LoadDiscoveryConfig(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	logger := trace.Logger(trace.NewNoOpLogger())
	if *verbose {
		logger = trace.NewStdLoggerWithWriter(stdout, stderr, trace.SeverityDebug)
	}

	decoder, err := trace.NewDecoderWithLogger(image, discovery, logger)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(stdout)
	defer w.Flush()

	decoder.SetSink(trace.OutputSinkFunc(func(oldPC, newPC riscv.Address, instr riscv.DecodedInstruction) {
		if oldPC == riscv.SentinelAddress {
			fmt.Fprintf(w, "trace-on:   %#016x  %s\n", newPC, instr.Disasm)
			return
		}
		fmt.Fprintf(w, "%#016x -> %#016x  %s\n", oldPC, newPC, instr.Disasm)
	}))
	decoder.SetElementSink(trace.ElementSinkFunc(func(e trace.Element) {
		fmt.Fprintf(w, "  [%s]\n", e)
	}))

	for i, pkt := range packets {
		if err := decoder.ProcessPacket(pkt); err != nil {
			w.Flush()
			return fmt.Errorf("packet %d: %w", i, err)
		}
	}

	if *showStats {
		w.Flush()
		trace.PrintStats(stdout, decoder.Stats(), decoder.CacheStats())
	}
	return nil
}

// memImage is a flat binary instruction memory, addressed starting at base.
// It implements riscv.InstructionOracle by inspecting the standard RISC-V
// compressed-instruction quadrant bits (the low two bits of the first
// halfword) to decide whether to return a 2- or 4-byte instruction word.
type memImage struct {
	data []byte
	base uint64
}

func loadMemImage(path string, base uint64) (*memImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading memory image: %w", err)
	}
	return &memImage{data: data, base: base}, nil
}

func (m *memImage) Fetch(address riscv.Address) (uint32, int, error) {
	if address < m.base || address-m.base+2 > uint64(len(m.data)) {
		return 0, 0, fmt.Errorf("address %#x out of range of memory image", address)
	}
	off := address - m.base
	lo := uint16(m.data[off]) | uint16(m.data[off+1])<<8
	if lo&0x3 != 0x3 {
		return uint32(lo), 2, nil
	}
	if off+4 > uint64(len(m.data)) {
		return 0, 0, fmt.Errorf("address %#x: truncated 4-byte instruction", address)
	}
	raw := uint32(lo) | uint32(m.data[off+2])<<16 | uint32(m.data[off+3])<<24
	return raw, 4, nil
}

// jsonPacket mirrors trace.Packet in a form convenient for hand-written
// JSON test fixtures: enums spelled out as lowercase names rather than
// integers.
type jsonPacket struct {
	Format    string `json:"format"`
	Subformat string `json:"subformat,omitempty"`
	Extension string `json:"extension,omitempty"`

	Address     uint64 `json:"address,omitempty"`
	WithAddress bool   `json:"with_address,omitempty"`

	Branch    bool   `json:"branch,omitempty"`
	Branches  uint8  `json:"branches,omitempty"`
	BranchMap uint32 `json:"branch_map,omitempty"`

	Updiscon bool `json:"updiscon,omitempty"`

	CorrectPredictions uint8  `json:"correct_predictions,omitempty"`
	JtcIndex           uint32 `json:"jtc_index,omitempty"`

	Support *jsonSupport `json:"support,omitempty"`

	Privilege uint8 `json:"privilege,omitempty"`
}

type jsonSupport struct {
	FullAddress      bool   `json:"full_address,omitempty"`
	ImplicitReturn   bool   `json:"implicit_return,omitempty"`
	JumpTargetCache  bool   `json:"jump_target_cache,omitempty"`
	BranchPrediction bool   `json:"branch_prediction,omitempty"`
	QualStatus       string `json:"qual_status"`
}

func loadPackets(path string) ([]trace.Packet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading packets: %w", err)
	}
	defer f.Close()

	var raw []jsonPacket
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing packets: %w", err)
	}

	packets := make([]trace.Packet, len(raw))
	for i, jp := range raw {
		pkt, err := jp.toPacket()
		if err != nil {
			return nil, fmt.Errorf("packet %d: %w", i, err)
		}
		packets[i] = pkt
	}
	return packets, nil
}

func (jp jsonPacket) toPacket() (trace.Packet, error) {
	format, err := parseFormat(jp.Format)
	if err != nil {
		return trace.Packet{}, err
	}
	pkt := trace.Packet{
		Format:             format,
		Address:            jp.Address,
		WithAddress:        jp.WithAddress,
		Branch:             jp.Branch,
		Branches:           jp.Branches,
		BranchMap:          jp.BranchMap,
		Updiscon:           jp.Updiscon,
		CorrectPredictions: jp.CorrectPredictions,
		JtcIndex:           jp.JtcIndex,
		Privilege:          jp.Privilege,
	}

	if format == trace.Format3Sync {
		sub, err := parseSubformat(jp.Subformat)
		if err != nil {
			return trace.Packet{}, err
		}
		pkt.Subformat = sub
		if sub == trace.SubformatSupport {
			if jp.Support == nil {
				return trace.Packet{}, fmt.Errorf("support subformat requires a \"support\" object")
			}
			qual, err := parseQualStatus(jp.Support.QualStatus)
			if err != nil {
				return trace.Packet{}, err
			}
			pkt.Support = trace.Support{
				Options: trace.Options{
					FullAddress:      jp.Support.FullAddress,
					ImplicitReturn:   jp.Support.ImplicitReturn,
					JumpTargetCache:  jp.Support.JumpTargetCache,
					BranchPrediction: jp.Support.BranchPrediction,
				},
				QualStatus: qual,
			}
		}
	}

	if format == trace.Format0Extension {
		ext, err := parseExtension(jp.Extension)
		if err != nil {
			return trace.Packet{}, err
		}
		pkt.Extension = ext
	}

	return pkt, nil
}

func parseFormat(s string) (trace.Format, error) {
	switch s {
	case "format0", "extension":
		return trace.Format0Extension, nil
	case "format1", "diff":
		return trace.Format1Diff, nil
	case "format2", "addr":
		return trace.Format2Addr, nil
	case "format3", "sync":
		return trace.Format3Sync, nil
	default:
		return 0, fmt.Errorf("unknown format %q", s)
	}
}

func parseSubformat(s string) (trace.Subformat, error) {
	switch s {
	case "start":
		return trace.SubformatStart, nil
	case "exception":
		return trace.SubformatException, nil
	case "support":
		return trace.SubformatSupport, nil
	case "context":
		return trace.SubformatContext, nil
	default:
		return 0, fmt.Errorf("unknown subformat %q", s)
	}
}

func parseExtension(s string) (trace.Extension, error) {
	switch s {
	case "branch_predictor":
		return trace.ExtensionBranchPredictor, nil
	case "jump_target_cache":
		return trace.ExtensionJumpTargetCache, nil
	default:
		return 0, fmt.Errorf("unknown extension %q", s)
	}
}

func parseQualStatus(s string) (trace.QualStatus, error) {
	switch s {
	case "no_change", "":
		return trace.QualStatusNoChange, nil
	case "ended_rep":
		return trace.QualStatusEndedRep, nil
	case "ended_upd":
		return trace.QualStatusEndedUpd, nil
	case "lost":
		return trace.QualStatusLost, nil
	default:
		return 0, fmt.Errorf("unknown qual_status %q", s)
	}
}

package trace

// Format identifies the te_inst packet format. Formats 0-2 are delta
// packets exchanged while a trace is running; format 3 carries
// synchronization and configuration information.
type Format uint8

const (
	Format0Extension Format = iota // extended packet: branch-predictor or jump-target-cache extension
	Format1Diff                    // differential-address packet (carries a branch count/map)
	Format2Addr                    // address-only packet
	Format3Sync                    // synchronization packet
)

func (f Format) String() string {
	switch f {
	case Format0Extension:
		return "format0-extension"
	case Format1Diff:
		return "format1-diff"
	case Format2Addr:
		return "format2-addr"
	case Format3Sync:
		return "format3-sync"
	default:
		return "format-unknown"
	}
}

// Subformat distinguishes the kind of format-3 synchronization packet.
type Subformat uint8

const (
	SubformatStart Subformat = iota
	SubformatException
	SubformatSupport
	SubformatContext
)

func (s Subformat) String() string {
	switch s {
	case SubformatStart:
		return "start"
	case SubformatException:
		return "exception"
	case SubformatSupport:
		return "support"
	case SubformatContext:
		return "context"
	default:
		return "subformat-unknown"
	}
}

// Extension distinguishes a format-0 packet's extended payload.
type Extension uint8

const (
	ExtensionBranchPredictor Extension = iota
	ExtensionJumpTargetCache
)

// QualStatus is the trace-qualification status carried by a support
// packet, describing why/whether tracing has stopped.
type QualStatus uint8

const (
	QualStatusNoChange QualStatus = iota
	QualStatusEndedRep             // ended, trace will be repeated (re-synchronized) later
	QualStatusEndedUpd             // ended, immediately updated (new trace follows in this packet stream)
	QualStatusLost                 // trace data was lost; not handled by the reference implementation either
)

// Options are the run-time configuration bits negotiated by a support
// packet. They gate the optional return-stack, jump-target-cache and
// branch-predictor machinery.
type Options struct {
	FullAddress      bool // addresses are absolute, not differential
	ImplicitReturn   bool // use the return stack to infer jalr x0,x1 / c.jr x1 targets
	JumpTargetCache  bool // use the jump-target cache for uninferrable-jump targets
	BranchPrediction bool // use the branch predictor table ahead of the branch map
}

// DiscoveryResponse carries the geometry constants that, per the protocol,
// are obtained out-of-band (a discovery handshake this decoder does not
// implement) rather than from te_inst packets themselves.
type DiscoveryResponse struct {
	CallCounterWidth     uint8 // return stack depth is 2^(CallCounterWidth+2)
	IaddressLSB          uint8 // 1 when compressed instructions are supported, else 0
	JumpTargetCacheBits  uint8 // jump-target cache has 2^JumpTargetCacheBits entries
	BranchPredictionBits uint8 // branch predictor table has 2^BranchPredictionBits entries
}

// Support is the payload of a format-3 SUPPORT subformat packet.
type Support struct {
	Options    Options
	QualStatus QualStatus
}

// Packet is one te_inst packet. Deserializing the wire encoding into this
// structure is out of scope for this decoder; callers supply it already
// populated.
type Packet struct {
	Format    Format
	Subformat Subformat // meaningful only when Format == Format3Sync
	Extension Extension // meaningful only when Format == Format0Extension

	Address     uint64 // raw (possibly differential) address payload
	WithAddress bool    // whether Address is present on this packet

	Branch    bool   // single-branch outcome bit (format 1/2/3 address-bearing packets)
	Branches  uint8  // count of branch outcomes folded into BranchMap
	BranchMap uint32 // packed branch outcomes, bit 0 = next branch (inverted: 0=taken, 1=not-taken)

	Updiscon bool // logical (already-deserializer-XORed) uninferrable-discontinuity flag

	CorrectPredictions uint8  // format-0 branch-predictor extension payload
	JtcIndex           uint32 // format-0 / format-1 jump-target-cache index

	Support Support // meaningful only for format-3 SUPPORT subformat packets

	Privilege uint8 // opaque privilege level, adopted verbatim into decoder state
}

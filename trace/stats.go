package trace

import (
	"fmt"
	"io"

	"github.com/pdonahue-ventana/riscv-trace-decoder/riscv"
)

// Stats accumulates the optional run-time diagnostics spec.md §6 mentions
// only in passing ("print_stats... optional"), restored here from
// original_source/decoder-algorithm-public.c's decoder->statistics fields
// and per-format/subformat/extension counters, which the distillation had
// compressed out of the narrative spec but not out of scope.
type Stats struct {
	Instructions uint64
	Branches     uint64
	Taken        uint64
	Updiscons    uint64
	Calls        uint64

	ByFormat    [4]uint64
	BySubformat [4]uint64
	ByExtension [2]uint64
}

// PrintStats writes a human-readable summary of both the run statistics
// and the decode-cache statistics, mirroring the formatting style of
// te_print_decoded_cache_statistics (percentage-formatted hit rates).
func PrintStats(w io.Writer, stats Stats, cache riscv.CacheStats) {
	fmt.Fprintf(w, "instructions = %d, branches = %d (taken = %d), updiscons = %d, calls = %d\n",
		stats.Instructions, stats.Branches, stats.Taken, stats.Updiscons, stats.Calls)
	fmt.Fprintf(w, "packets: format0 = %d, format1 = %d, format2 = %d, format3 = %d\n",
		stats.ByFormat[0], stats.ByFormat[1], stats.ByFormat[2], stats.ByFormat[3])

	if cache.Gets == 0 {
		return
	}
	same := float64(cache.Same) * 100.0 / float64(cache.Gets)
	hits := float64(cache.Hits) * 100.0 / float64(cache.Gets)
	fmt.Fprintf(w, "decoded-cache: same = %d (%.2f%%), hits = %d (%.2f%%), total = %d, combined hit-rate = %.2f%%\n",
		cache.Same, same, cache.Hits, hits, cache.Gets, same+hits)
}

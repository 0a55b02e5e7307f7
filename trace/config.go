package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// LoadDiscoveryConfig reads a small ini-style text file of `key = value`
// lines (blank lines and lines starting with '#' or ';' ignored, one
// section named [discovery] expected) and returns the DiscoveryResponse it
// describes. This stands in for the out-of-band discovery handshake the
// protocol assumes but this decoder does not implement; it is grounded on
// the teacher's ptm config loader, which reads CoreSight trace-ID/protocol
// config out of a similar flat key=value file rather than pulling in a
// third-party config/ini library.
//
// Recognized keys: call_counter_width, iaddress_lsb, jump_target_cache_bits,
// branch_prediction_bits. Any key is optional; DefaultDiscoveryResponse
// supplies the value of anything not present.
func LoadDiscoveryConfig(r io.Reader) (DiscoveryResponse, error) {
	cfg := DefaultDiscoveryResponse()
	section := ""

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(line, "["), "]"))
			continue
		}
		if section != "" && section != "discovery" {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return DiscoveryResponse{}, fmt.Errorf("riscv-trace: config line %d: expected key = value", lineNo)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return DiscoveryResponse{}, fmt.Errorf("riscv-trace: config line %d: %s: %w", lineNo, key, err)
		}

		switch key {
		case "call_counter_width":
			cfg.CallCounterWidth = uint8(n)
		case "iaddress_lsb":
			cfg.IaddressLSB = uint8(n)
		case "jump_target_cache_bits":
			cfg.JumpTargetCacheBits = uint8(n)
		case "branch_prediction_bits":
			cfg.BranchPredictionBits = uint8(n)
		default:
			return DiscoveryResponse{}, fmt.Errorf("riscv-trace: config line %d: unknown key %q", lineNo, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return DiscoveryResponse{}, fmt.Errorf("riscv-trace: reading config: %w", err)
	}
	return cfg, nil
}

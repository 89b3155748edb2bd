package models

import (
	"regexp"
	"strconv"
	"strings"
)

// an entry ends at its "(pid) cpu=value" anchor, so names may contain the
// "; " separator
var observationRe = regexp.MustCompile(`(.*?)\((\d+)\) cpu=([-+0-9.eE]+|NaN|[+-]?Inf)(?:; |$)`)

// ParseTopProcesses reverses AnomalyEvent.TopProcessesText. Entries are
// delimited by their "(pid) cpu=value" suffix rather than by the separator,
// so a name is only misread if it itself contains such a suffix. Trailing
// text without a suffix is skipped. Memory is not part of the text form, so
// MemMB is always zero.
func ParseTopProcesses(s string) []ProcessObservation {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var out []ProcessObservation
	for _, m := range observationRe.FindAllStringSubmatch(s, -1) {
		pid, err := strconv.ParseInt(m[2], 10, 32)
		if err != nil {
			continue
		}
		cpu, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			continue
		}
		out = append(out, ProcessObservation{PID: int32(pid), Name: m[1], CPUPct: cpu})
	}
	return out
}

// Package resconf translates the 4-character result-configuration string
// (or one of its named aliases) into the IPAM admissibility vector that
// governs which read-orientation combinations the writer may report.
// The table and swap rule are taken directly from the reference
// implementation's ParseResConfStr.
package resconf

import "github.com/srprism/srprism-batch/internal/logger"

// MaxIPAMIdx bounds the IPAM vector: it has MaxIPAMIdx+1 entries.
const MaxIPAMIdx = 3

const resConfStrLen = 4

// ipamInitTable[i][j] is the contribution of result-config position i
// being set to the j-th IPAM entry.
var ipamInitTable = [resConfStrLen][MaxIPAMIdx + 1]int{
	{4, 2, 1, 8},
	{8, 1, 8, 1},
	{1, 8, 4, 2},
	{2, 4, 2, 4},
}

// IPAM is the strand/orientation admissibility vector.
type IPAM [MaxIPAMIdx + 1]int

// Valid reports whether at least one entry of the vector is nonzero, the
// condition the driver requires before starting a run.
func (v IPAM) Valid() bool {
	for _, x := range v {
		if x != 0 {
			return true
		}
	}
	return false
}

// resolveAlias expands the named shorthands to their canonical 4-char form.
func resolveAlias(s string) string {
	switch s {
	case "illumina", "454":
		return "0100"
	case "solid":
		return "0010"
	default:
		return s
	}
}

// Parse converts a result-configuration string into an IPAM vector. Any
// string that is not length 4 over {'0','1'} after alias resolution is an
// error: Parse logs it and returns the all-zero vector.
func Parse(resConfStr string) IPAM {
	s := resolveAlias(resConfStr)
	var result IPAM

	if len(s) != resConfStrLen {
		logger.Errorf("result configuration string must be %d characters", resConfStrLen)
		return result
	}

	for i := 0; i < resConfStrLen; i++ {
		switch s[i] {
		case '1':
			for j := 0; j <= MaxIPAMIdx; j++ {
				result[j] |= ipamInitTable[i][j]
			}
		case '0':
			// contributes nothing
		default:
			logger.Errorf("result configuration string must consist of characters '0' or '1'")
			return IPAM{}
		}
	}

	return result
}

// Swap02_13 swaps positions (0<->2, 1<->3) of a 4-character result-config
// string. The composition root (cmd/srprism-align) applies this transform
// before parsing whenever sa_start < 0 requests reverse-strand scanning of
// the subject window; it is exported so that caller and tests can both
// apply it to the exact
// same canonical string that gets stored in the Batch Seed.
func Swap02_13(s string) string {
	if len(s) != resConfStrLen {
		return s
	}
	b := []byte(s)
	b[0], b[2] = b[2], b[0]
	b[1], b[3] = b[3], b[1]
	return string(b)
}

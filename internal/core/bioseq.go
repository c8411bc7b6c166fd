package core

import (
	"strings"
	"unicode"
)

const AminoAcids = "ACDEFGHIKLMNPQRSTVWY"

var aminoAcidSet = func() [256]bool {
	var set [256]bool
	for i := 0; i < len(AminoAcids); i++ {
		set[AminoAcids[i]] = true
	}
	return set
}()

func IsValidAASeq(seq string) bool {
	if len(seq) == 0 {
		return false
	}
	for i := 0; i < len(seq); i++ {
		if !aminoAcidSet[seq[i]] {
			return false
		}
	}
	return true
}

// SplitSeqs splits free text into sequences separated by whitespace, commas or semicolons.
func SplitSeqs(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';'
	})

	seqs := make([]string, 0, len(fields))
	for _, f := range fields {
		seqs = append(seqs, strings.ToUpper(f))
	}
	return seqs
}

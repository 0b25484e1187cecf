// Package matcher decides whether an identifier read off a document refers to
// an expected identifier. Extracted identifiers are OCR output, so the
// comparison tolerates separator noise, 1/I and 0/O confusion, a garbled
// prefix, and small edits on long identifiers.
package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const (
	// MinFuzzyLength is the normalized length both identifiers must exceed
	// before the suffix and similarity stages are considered.
	MinFuzzyLength = 8
	// SuffixLength is how many trailing characters the suffix stage compares.
	SuffixLength = 6
	// MaxSuffixLengthDiff is the exclusive bound on the length difference the
	// suffix stage accepts.
	MaxSuffixLengthDiff = 4
	// SimilarityThreshold is the exclusive lower bound on the similarity ratio.
	SimilarityThreshold = 0.70
)

// Stage names the step of the cascade that produced a decision.
type Stage string

// Cascade stages.
const (
	StageExact      Stage = "exact"
	StageNormalized Stage = "normalized"
	StageSuffix     Stage = "suffix"
	StageSimilarity Stage = "similarity"
	StageNone       Stage = "none"
)

// Result explains a single comparison.
type Result struct {
	Expected           string
	Extracted          string
	NormalizedExpected string
	NormalizedExtract  string
	Stage              Stage
	Similarity         float64
	EditDistance       int // diagnostic only
	Matched            bool
}

var normalizer = strings.NewReplacer(
	" ", "", "\t", "", "\n", "", "\r", "",
	"-", "", "_", "",
	"1", "I", "0", "O",
)

// Normalize uppercases s, drops whitespace, hyphens and underscores, and folds
// the digits 1 and 0 onto the letters I and O.
func Normalize(s string) string {
	return normalizer.Replace(strings.ToUpper(s))
}

// Matches reports whether extracted refers to expected.
func Matches(expected, extracted string) bool {
	if expected == extracted {
		return true
	}

	a, b := Normalize(expected), Normalize(extracted)
	if a == b {
		return true
	}

	if !fuzzyEligible(a, b) {
		return false
	}

	if suffixMatch(a, b) {
		return true
	}

	return Ratio(a, b) > SimilarityThreshold
}

// Explain runs the cascade and reports which stage decided, along with the
// similarity ratio and edit distance of the normalized forms.
func Explain(expected, extracted string) Result {
	a, b := Normalize(expected), Normalize(extracted)
	res := Result{
		Expected:           expected,
		Extracted:          extracted,
		NormalizedExpected: a,
		NormalizedExtract:  b,
		Similarity:         Ratio(a, b),
		EditDistance:       levenshtein.ComputeDistance(a, b),
		Stage:              StageNone,
	}

	fuzzy := fuzzyEligible(a, b)

	switch {
	case expected == extracted:
		res.Stage = StageExact
	case a == b:
		res.Stage = StageNormalized
	case fuzzy && suffixMatch(a, b):
		res.Stage = StageSuffix
	case fuzzy && res.Similarity > SimilarityThreshold:
		res.Stage = StageSimilarity
	}
	res.Matched = res.Stage != StageNone

	return res
}

func fuzzyEligible(a, b string) bool {
	return utf8.RuneCountInString(a) > MinFuzzyLength && utf8.RuneCountInString(b) > MinFuzzyLength
}

func suffixMatch(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	if string(ra[len(ra)-SuffixLength:]) != string(rb[len(rb)-SuffixLength:]) {
		return false
	}
	diff := len(ra) - len(rb)
	if diff < 0 {
		diff = -diff
	}
	return diff < MaxSuffixLengthDiff
}

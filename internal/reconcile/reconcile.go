// Package reconcile partitions a sender's expected records into matched and
// missing sets given the identifiers extracted from their documents.
package reconcile

import (
	"github.com/Veraticus/invoice-chaser/internal/matcher"
	"github.com/Veraticus/invoice-chaser/internal/model"
)

// MatchFunc decides whether an extracted identifier refers to an expected one.
type MatchFunc func(expected, extracted string) bool

// Reconcile assigns each extracted identifier, in order, to the first expected
// record it matches that has not already been claimed. Expected records left
// unclaimed are reported missing in their original order. Inputs are not
// modified; the returned updates are the status changes the caller should
// commit.
func Reconcile(expected []model.ExpectedRecord, extracted []string) model.Outcome {
	out, _ := ReconcileWith(matcher.Matches, expected, extracted)
	return out
}

// ReconcileWith is Reconcile with a custom match function. It also returns,
// for every matched expected identifier, the extracted identifier that
// claimed it.
func ReconcileWith(match MatchFunc, expected []model.ExpectedRecord, extracted []string) (model.Outcome, map[string]string) {
	claimed := make([]bool, len(expected))
	sources := make(map[string]string)
	out := model.Outcome{
		Matched: []string{},
		Missing: []string{},
		Updates: []model.RecordUpdate{},
	}

	for _, id := range extracted {
		for i := range expected {
			if claimed[i] || !match(expected[i].Identifier, id) {
				continue
			}
			claimed[i] = true
			sources[expected[i].Identifier] = id
			out.Matched = append(out.Matched, expected[i].Identifier)
			out.Updates = append(out.Updates, model.RecordUpdate{
				Identifier: expected[i].Identifier,
				Status:     model.StatusSatisfied,
			})
			break
		}
	}

	for i := range expected {
		if !claimed[i] {
			out.Missing = append(out.Missing, expected[i].Identifier)
		}
	}

	return out, sources
}

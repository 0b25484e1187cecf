// Package analytics summarizes the ledger for the daily reconciliation report.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/invoice-chaser/internal/model"
)

// RecentLimit caps the number of recently satisfied records in a Summary.
const RecentLimit = 10

// Unassigned labels records with no client or issuer tag.
const Unassigned = "(unassigned)"

// Summary is the ledger rolled up for reporting. Totals cover satisfied
// records only.
type Summary struct {
	ReceivedValue decimal.Decimal
	ByClient      []ClientTotal
	ByIssuer      []IssuerTotal
	Recent        []model.ExpectedRecord
	ReceivedCount int
	PendingCount  int
}

// ClientTotal is the received value billed to one client.
type ClientTotal struct {
	Client string
	Value  decimal.Decimal
	Count  int
}

// IssuerTotal is the received count and value for one issuer and tax id.
type IssuerTotal struct {
	Issuer string
	TaxID  string
	Value  decimal.Decimal
	Count  int
}

// Summarize rolls records up. Clients are ordered by value, largest first;
// issuers by name then tax id. Recent holds the latest satisfied records,
// newest first.
func Summarize(records []model.ExpectedRecord) Summary {
	summary := Summary{ReceivedValue: decimal.Zero}

	clients := map[string]*ClientTotal{}
	type issuerKey struct{ issuer, taxID string }
	issuers := map[issuerKey]*IssuerTotal{}

	for _, r := range records {
		if r.IsAwaiting() {
			summary.PendingCount++
			continue
		}

		summary.ReceivedCount++
		summary.ReceivedValue = summary.ReceivedValue.Add(r.Amount)
		summary.Recent = append(summary.Recent, r)

		client := labelOr(r.Tags.Client)
		ct, ok := clients[client]
		if !ok {
			ct = &ClientTotal{Client: client, Value: decimal.Zero}
			clients[client] = ct
		}
		ct.Count++
		ct.Value = ct.Value.Add(r.Amount)

		key := issuerKey{labelOr(r.Tags.Issuer), r.Tags.TaxID}
		it, ok := issuers[key]
		if !ok {
			it = &IssuerTotal{Issuer: key.issuer, TaxID: key.taxID, Value: decimal.Zero}
			issuers[key] = it
		}
		it.Count++
		it.Value = it.Value.Add(r.Amount)
	}

	for _, ct := range clients {
		summary.ByClient = append(summary.ByClient, *ct)
	}
	sort.Slice(summary.ByClient, func(i, j int) bool {
		a, b := summary.ByClient[i], summary.ByClient[j]
		if !a.Value.Equal(b.Value) {
			return a.Value.GreaterThan(b.Value)
		}
		return a.Client < b.Client
	})

	for _, it := range issuers {
		summary.ByIssuer = append(summary.ByIssuer, *it)
	}
	sort.Slice(summary.ByIssuer, func(i, j int) bool {
		a, b := summary.ByIssuer[i], summary.ByIssuer[j]
		if a.Issuer != b.Issuer {
			return a.Issuer < b.Issuer
		}
		return a.TaxID < b.TaxID
	})

	sort.SliceStable(summary.Recent, func(i, j int) bool {
		return satisfiedAt(summary.Recent[i]).After(satisfiedAt(summary.Recent[j]))
	})
	if len(summary.Recent) > RecentLimit {
		summary.Recent = summary.Recent[:RecentLimit]
	}

	return summary
}

func labelOr(s string) string {
	if s == "" {
		return Unassigned
	}
	return s
}

func satisfiedAt(r model.ExpectedRecord) (t time.Time) {
	if r.SatisfiedAt != nil {
		t = *r.SatisfiedAt
	}
	return t
}

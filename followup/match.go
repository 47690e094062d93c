package followup

import (
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/GoCodeAlone/showroom/crm"
	"github.com/GoCodeAlone/showroom/plan"
)

// Level says whether a candidate came from the client or from one sale.
type Level string

const (
	LevelClient Level = "client"
	LevelSale   Level = "sale"
)

// Candidate is a follow-up that is due today, before deduplication.
type Candidate struct {
	ClientID    string
	SaleID      string // empty at client level
	Level       Level
	DayOffset   int
	Description string
}

// Match returns the steps whose offset equals elapsed exactly.
func Match(steps []plan.Step, elapsed int) []plan.Step {
	var out []plan.Step
	for _, st := range steps {
		if st.DayOffset == elapsed {
			out = append(out, st)
		}
	}
	return out
}

// SaleDescription appends the order amount to a step description.
func SaleDescription(desc string, amount float64) string {
	return fmt.Sprintf("%s (Order $%.2f)", desc, amount)
}

// Candidates lists every follow-up due today for a client in segment seg:
// first the client-level matches against the client anchor, then the matches
// of each qualifying sale against its own date, oldest sale first. skipped is
// the number of qualifying sales ignored because of a malformed date.
func Candidates(c crm.Client, sales []crm.Sale, seg plan.Segment, plans plan.Plans, today civil.Date) (cands []Candidate, skipped int) {
	steps := plans.Steps(seg)
	anchors, bad := splitSales(sales)

	if anchor, ok := ClientAnchor(c, sales); ok {
		if elapsed, ok := Elapsed(anchor, today); ok {
			for _, st := range Match(steps, elapsed) {
				cands = append(cands, Candidate{
					ClientID:    c.ID,
					Level:       LevelClient,
					DayOffset:   st.DayOffset,
					Description: st.Description,
				})
			}
		}
	}

	for _, a := range anchors {
		elapsed, ok := Elapsed(a.Date, today)
		if !ok {
			continue
		}
		for _, st := range Match(steps, elapsed) {
			cands = append(cands, Candidate{
				ClientID:    c.ID,
				SaleID:      a.SaleID,
				Level:       LevelSale,
				DayOffset:   st.DayOffset,
				Description: SaleDescription(st.Description, a.Amount),
			})
		}
	}
	return cands, len(bad)
}

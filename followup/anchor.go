// Package followup decides which lifecycle follow-ups are due for each active
// client and emits them as tasks.
package followup

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/GoCodeAlone/showroom/crm"
	"github.com/GoCodeAlone/showroom/plan"
)

// longTermDays is the relationship age at which a buyer becomes long-term.
const longTermDays = 365

var saleDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseSaleDate parses a persisted sale date: YYYY-MM-DD, an RFC 3339
// timestamp, or a SQLite datetime. Timestamps keep their own calendar day.
func ParseSaleDate(s string) (civil.Date, error) {
	return parseSaleDate(s, nil)
}

// ParseSaleDateIn is ParseSaleDate for a store whose calendar is loc: a
// timestamp is moved into loc before its day is taken. SQLite datetimes carry
// no zone and are read as UTC. Plain dates are returned unchanged.
func ParseSaleDateIn(s string, loc *time.Location) (civil.Date, error) {
	return parseSaleDate(s, loc)
}

func parseSaleDate(s string, loc *time.Location) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, fmt.Errorf("empty sale date")
	}
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	for _, layout := range saleDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if loc != nil {
				t = t.In(loc)
			}
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("malformed sale date %q", s)
}

// localSales returns sales with every parseable timestamp rewritten as its
// YYYY-MM-DD day in loc. Malformed dates are left for splitSales to report.
func localSales(sales []crm.Sale, loc *time.Location) []crm.Sale {
	out := make([]crm.Sale, len(sales))
	for i, s := range sales {
		out[i] = s
		if d, err := ParseSaleDateIn(s.Date, loc); err == nil {
			out[i].Date = d.String()
		}
	}
	return out
}

// Anchor is a qualifying sale's reference date.
type Anchor struct {
	SaleID string
	Date   civil.Date
	Amount float64
}

// splitSales returns the anchors of qualifying sales, oldest first, and the
// qualifying sales whose date could not be parsed.
func splitSales(sales []crm.Sale) (anchors []Anchor, skipped []crm.Sale) {
	for _, s := range sales {
		if !s.Status.Qualifying() {
			continue
		}
		d, err := ParseSaleDate(s.Date)
		if err != nil {
			skipped = append(skipped, s)
			continue
		}
		anchors = append(anchors, Anchor{SaleID: s.ID, Date: d, Amount: s.Amount})
	}
	sort.SliceStable(anchors, func(i, j int) bool {
		if anchors[i].Date != anchors[j].Date {
			return anchors[i].Date.Before(anchors[j].Date)
		}
		return anchors[i].SaleID < anchors[j].SaleID
	})
	return anchors, skipped
}

// SaleAnchors returns the anchor of every qualifying sale with a valid date,
// oldest first. Sales with malformed dates are left out.
func SaleAnchors(sales []crm.Sale) []Anchor {
	anchors, _ := splitSales(sales)
	return anchors
}

// ClientAnchor returns the date the client relationship is measured from:
// the earliest qualifying sale, or the registration date when the client has
// never bought. ok is false when neither is known.
func ClientAnchor(c crm.Client, sales []crm.Sale) (civil.Date, bool) {
	if anchors := SaleAnchors(sales); len(anchors) > 0 {
		return anchors[0].Date, true
	}
	if c.Since != (civil.Date{}) {
		return c.Since, true
	}
	return civil.Date{}, false
}

// Elapsed returns the whole days from anchor to today. ok is false when the
// anchor lies in the future.
func Elapsed(anchor, today civil.Date) (days int, ok bool) {
	days = today.DaysSince(anchor)
	return days, days >= 0
}

// Classify places a client in a lifecycle segment. Clients without a
// qualifying sale are shoppers; buyers whose first qualifying sale is at least
// a year old are long-term.
func Classify(c crm.Client, sales []crm.Sale, today civil.Date) plan.Segment {
	anchors := SaleAnchors(sales)
	if len(anchors) == 0 {
		return plan.Shopper
	}
	if today.DaysSince(anchors[0].Date) >= longTermDays {
		return plan.LongTerm
	}
	return plan.Buyer
}

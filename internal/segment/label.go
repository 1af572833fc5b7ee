package segment

import "sort"

// Label is the behavioural segment a customer is assigned to.
type Label string

const (
	Champions          Label = "Champions"
	LoyalCustomers     Label = "Loyal Customers"
	FrequentBuyers     Label = "Frequent Buyers"
	BigSpenders        Label = "Big Spenders"
	PotentialLoyalists Label = "Potential Loyalists"
	AtRisk             Label = "At Risk"
	Hibernating        Label = "Hibernating"
)

// Labels lists every segment in cascade order.
var Labels = []Label{
	Champions,
	LoyalCustomers,
	FrequentBuyers,
	BigSpenders,
	PotentialLoyalists,
	AtRisk,
	Hibernating,
}

// ParseLabel reports whether s names one of the known segments.
func ParseLabel(s string) (Label, bool) {
	for _, l := range Labels {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

// Distribution maps each segment to the number of customers in it.
type Distribution map[Label]int64

// Total is the number of customers across all segments.
func (d Distribution) Total() int64 {
	var n int64
	for _, c := range d {
		n += c
	}
	return n
}

// Count returns the size of a segment, zero when absent.
func (d Distribution) Count(l Label) int64 {
	return d[l]
}

// SegmentCount is one entry of a sorted Distribution.
type SegmentCount struct {
	Segment Label
	Count   int64
}

// Sorted returns the segments by descending count, ties broken by name.
func (d Distribution) Sorted() []SegmentCount {
	out := make([]SegmentCount, 0, len(d))
	for l, c := range d {
		out = append(out, SegmentCount{Segment: l, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Segment < out[j].Segment
	})
	return out
}

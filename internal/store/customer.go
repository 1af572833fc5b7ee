package store

// Customer is one row of the customer behaviour dataset.
type Customer struct {
	CustomerID            string
	Gender                string
	Age                   float64
	City                  string
	MembershipType        string
	TotalSpend            float64
	ItemsPurchased        float64
	AverageRating         float64
	DiscountApplied       bool
	DaysSinceLastPurchase float64
	SatisfactionLevel     string
}

// Record flattens the customer into field name/value pairs. Empty strings
// are left out so that term aggregations treat them as missing.
func (c Customer) Record() map[string]any {
	rec := map[string]any{
		FieldAge:               c.Age,
		FieldTotalSpend:        c.TotalSpend,
		FieldItemsPurchased:    c.ItemsPurchased,
		FieldAverageRating:     c.AverageRating,
		FieldDiscountApplied:   c.DiscountApplied,
		FieldDaysSincePurchase: c.DaysSinceLastPurchase,
	}
	put := func(k, v string) {
		if v != "" {
			rec[k] = v
		}
	}
	put(FieldCustomerID, c.CustomerID)
	put(FieldGender, c.Gender)
	put(FieldCity, c.City)
	put(FieldMembershipType, c.MembershipType)
	put(FieldSatisfactionLevel, c.SatisfactionLevel)
	return rec
}

// Columns lists the fields of a Customer in storage order.
var Columns = []string{
	FieldCustomerID,
	FieldGender,
	FieldAge,
	FieldCity,
	FieldMembershipType,
	FieldTotalSpend,
	FieldItemsPurchased,
	FieldAverageRating,
	FieldDiscountApplied,
	FieldDaysSincePurchase,
	FieldSatisfactionLevel,
}

// Values returns the customer's fields in Columns order.
func (c Customer) Values() []any {
	return []any{
		c.CustomerID,
		c.Gender,
		c.Age,
		c.City,
		c.MembershipType,
		c.TotalSpend,
		c.ItemsPurchased,
		c.AverageRating,
		c.DiscountApplied,
		c.DaysSinceLastPurchase,
		c.SatisfactionLevel,
	}
}

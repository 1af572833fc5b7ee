// Package segment holds the RFM scoring model: percentile cut points,
// per-dimension sub-scores and the ordered rule cascade mapping a composite
// score to a behavioural segment.
//
// Classifier is the single definition of the model. Stores that can evaluate
// expressions server side compile it (see Dimensions and Rules); stores that
// cannot call Classify on every record.
package segment

// Fields names the record fields feeding each RFM dimension.
type Fields struct {
	Recency   string
	Frequency string
	Monetary  string
}

// Dimension is one scored input of the classifier.
type Dimension struct {
	Var   Var
	Field string
	Cuts  Cuts
	// Descending means smaller raw values score higher.
	Descending bool
}

// Score maps a raw value to its 1..5 sub-score.
func (d Dimension) Score(v float64) int {
	if d.Descending {
		return ScoreDescending(v, d.Cuts)
	}
	return ScoreAscending(v, d.Cuts)
}

// Bucket returns the score assigned to values at or below Cuts[i],
// and for i == len(Cuts) the score of values above every cut.
func (d Dimension) Bucket(i int) int {
	if d.Descending {
		return 5 - i
	}
	return i + 1
}

// Classifier scores records against fixed cut points and labels them with a
// rule cascade. It is immutable and safe for concurrent use.
type Classifier struct {
	dims  [3]Dimension
	rules []Rule
}

// NewClassifier builds a classifier over the given fields and cut points.
// A nil rules slice selects DefaultRules.
func NewClassifier(fields Fields, cuts CutSet, rules []Rule) (*Classifier, error) {
	if rules == nil {
		rules = DefaultRules
	}
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	cuts = cuts.Normalize()
	return &Classifier{
		dims: [3]Dimension{
			{Var: VarR, Field: fields.Recency, Cuts: cuts.Recency, Descending: true},
			{Var: VarF, Field: fields.Frequency, Cuts: cuts.Frequency},
			{Var: VarM, Field: fields.Monetary, Cuts: cuts.Monetary},
		},
		rules: rules,
	}, nil
}

// Dimensions returns R, F and M in that order.
func (c *Classifier) Dimensions() [3]Dimension { return c.dims }

// Rules returns the cascade in evaluation order.
func (c *Classifier) Rules() []Rule { return c.rules }

// Cuts returns the normalized cut points the classifier was built with.
func (c *Classifier) Cuts() CutSet {
	return CutSet{Recency: c.dims[0].Cuts, Frequency: c.dims[1].Cuts, Monetary: c.dims[2].Cuts}
}

// Score computes the sub-scores of a single record.
func (c *Classifier) Score(recency, frequency, monetary float64) Score {
	return Score{
		R: c.dims[0].Score(recency),
		F: c.dims[1].Score(frequency),
		M: c.dims[2].Score(monetary),
	}
}

// Classify assigns a record to exactly one segment.
func (c *Classifier) Classify(recency, frequency, monetary float64) Label {
	return Match(c.rules, c.Score(recency, frequency, monetary))
}

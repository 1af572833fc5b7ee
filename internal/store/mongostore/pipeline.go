package mongostore

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/godilite/rfm-insights/internal/segment"
	"github.com/godilite/rfm-insights/internal/store"
)

var mongoOps = map[segment.CmpOp]string{
	segment.OpEq:  "$eq",
	segment.OpGte: "$gte",
	segment.OpLte: "$lte",
	segment.OpGt:  "$gt",
	segment.OpLt:  "$lt",
}

var mongoAggs = map[store.AggKind]string{
	store.AggAvg: "$avg",
	store.AggSum: "$sum",
	store.AggMin: "$min",
	store.AggMax: "$max",
}

func ref(field string) string { return "$" + field }

func byCountDesc(countField string) bson.D {
	return bson.D{{Key: "$sort", Value: bson.D{{Key: countField, Value: -1}, {Key: "_id", Value: 1}}}}
}

func limitStage(limit int) []bson.D {
	if limit <= 0 {
		return nil
	}
	return []bson.D{{{Key: "$limit", Value: limit}}}
}

func averagePipeline(field string) []bson.D {
	return []bson.D{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: nil}, {Key: "v", Value: bson.D{{Key: "$avg", Value: ref(field)}}}}}},
	}
}

func termsPipeline(field string, limit int) []bson.D {
	p := []bson.D{
		{{Key: "$match", Value: bson.D{{Key: field, Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: nil}}}}}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: ref(field)}, {Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		byCountDesc("n"),
	}
	return append(p, limitStage(limit)...)
}

func metricPipeline(metricField string, agg store.AggKind, groupField string, limit int) ([]bson.D, error) {
	var metric bson.D
	if agg == store.AggCount {
		metric = bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$isNumber", Value: ref(metricField)}}, 1, 0,
		}}}}}
	} else {
		op, ok := mongoAggs[agg]
		if !ok {
			return nil, fmt.Errorf("%w: %q", store.ErrInvalidAgg, agg)
		}
		metric = bson.D{{Key: op, Value: ref(metricField)}}
	}
	p := []bson.D{
		{{Key: "$match", Value: bson.D{{Key: groupField, Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: nil}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: ref(groupField)},
			{Key: "v", Value: metric},
			{Key: "docs", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		byCountDesc("docs"),
	}
	return append(p, limitStage(limit)...), nil
}

// facetKey names the facet holding the i-th percentile request.
func facetKey(i int) string { return fmt.Sprintf("f%d", i) }

// percentilePipeline sorts each field inside its own facet and picks the two
// values adjacent to every percentile, so a single round trip serves the
// whole batch and only 2*len(percents) values per field come back.
//
// Each facet $pushes the whole sorted population into one array, and the
// $facet output is a single document, so the pipeline fails once the arrays
// outgrow the 16MB BSON document limit. That is roughly one to two million
// numeric values across the batch; larger collections need $percentile
// (MongoDB 7.0) or a sampled pipeline.
func percentilePipeline(reqs []store.PercentileRequest) []bson.D {
	facets := bson.D{}
	for i, req := range reqs {
		size := bson.D{{Key: "$size", Value: "$values"}}
		last := bson.D{{Key: "$subtract", Value: bson.A{size, 1}}}
		picks := bson.A{}
		for _, p := range req.Percents {
			pos := bson.D{{Key: "$multiply", Value: bson.A{p / 100, last}}}
			for _, round := range []string{"$floor", "$ceil"} {
				picks = append(picks, bson.D{{Key: "$arrayElemAt", Value: bson.A{
					"$values", bson.D{{Key: "$toInt", Value: bson.D{{Key: round, Value: pos}}}},
				}}})
			}
		}
		facets = append(facets, bson.E{Key: facetKey(i), Value: bson.A{
			bson.D{{Key: "$match", Value: bson.D{{Key: req.Field, Value: bson.D{{Key: "$type", Value: "number"}}}}}},
			bson.D{{Key: "$sort", Value: bson.D{{Key: req.Field, Value: 1}}}},
			bson.D{{Key: "$group", Value: bson.D{{Key: "_id", Value: nil}, {Key: "values", Value: bson.D{{Key: "$push", Value: ref(req.Field)}}}}}},
			bson.D{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}, {Key: "n", Value: size}, {Key: "picks", Value: picks}}}},
		}})
	}
	return []bson.D{{{Key: "$facet", Value: facets}}}
}

type facetRow struct {
	N     int64     `bson:"n"`
	Picks []float64 `bson:"picks"`
}

// decodePercentiles interpolates the picked values of each facet.
func decodePercentiles(reqs []store.PercentileRequest, doc map[string][]facetRow) map[string]map[float64]float64 {
	out := make(map[string]map[float64]float64, len(reqs))
	for i, req := range reqs {
		pcts := make(map[float64]float64)
		rows := doc[facetKey(i)]
		if len(rows) == 1 {
			row := rows[0]
			for j, p := range req.Percents {
				if 2*j+1 >= len(row.Picks) {
					break
				}
				lo, hi := row.Picks[2*j], row.Picks[2*j+1]
				v, ok := store.Interpolate(row.N, p, func(rank int64) (float64, bool) {
					l, h, _ := store.Ranks(row.N, p)
					switch rank {
					case l:
						return lo, true
					case h:
						return hi, true
					}
					return 0, false
				})
				if ok {
					pcts[p] = v
				}
			}
		}
		out[req.Field] = pcts
	}
	return out
}

// compileDimension renders the 1..5 step function of one dimension.
func compileDimension(dim segment.Dimension) bson.D {
	value := bson.D{{Key: "$ifNull", Value: bson.A{ref(dim.Field), 0}}}
	branches := bson.A{}
	for i, cut := range dim.Cuts {
		branches = append(branches, bson.D{
			{Key: "case", Value: bson.D{{Key: "$lte", Value: bson.A{value, cut}}}},
			{Key: "then", Value: dim.Bucket(i)},
		})
	}
	return bson.D{{Key: "$switch", Value: bson.D{
		{Key: "branches", Value: branches},
		{Key: "default", Value: dim.Bucket(len(dim.Cuts))},
	}}}
}

var scoreFields = map[segment.Var]string{
	segment.VarR: "r",
	segment.VarF: "f",
	segment.VarM: "m",
}

func compileVar(v segment.Var) (any, error) {
	if v == segment.VarCode {
		return bson.D{{Key: "$add", Value: bson.A{
			bson.D{{Key: "$multiply", Value: bson.A{"$r", 100}}},
			bson.D{{Key: "$multiply", Value: bson.A{"$f", 10}}},
			"$m",
		}}}, nil
	}
	f, ok := scoreFields[v]
	if !ok {
		return nil, fmt.Errorf("unknown variable %q", v)
	}
	return ref(f), nil
}

func compileExpr(e segment.Expr) (any, error) {
	switch x := e.(type) {
	case segment.Cmp:
		lhs, err := compileVar(x.Var)
		if err != nil {
			return nil, err
		}
		op, ok := mongoOps[x.Op]
		if !ok {
			return nil, fmt.Errorf("unknown operator %q", x.Op)
		}
		return bson.D{{Key: op, Value: bson.A{lhs, x.Value}}}, nil
	case segment.All:
		return compileJunction("$and", []segment.Expr(x))
	case segment.Any:
		return compileJunction("$or", []segment.Expr(x))
	case segment.Always:
		return true, nil
	}
	return nil, fmt.Errorf("unsupported rule expression %T", e)
}

func compileJunction(op string, exprs []segment.Expr) (any, error) {
	parts := bson.A{}
	for _, e := range exprs {
		c, err := compileExpr(e)
		if err != nil {
			return nil, err
		}
		parts = append(parts, c)
	}
	return bson.D{{Key: op, Value: parts}}, nil
}

// segmentPipeline scores every document and groups by the label the rule
// cascade assigns.
func segmentPipeline(c *segment.Classifier, limit int) ([]bson.D, error) {
	project := bson.D{{Key: "_id", Value: 0}}
	for _, dim := range c.Dimensions() {
		if err := store.ValidateField(dim.Field); err != nil {
			return nil, err
		}
		project = append(project, bson.E{Key: scoreFields[dim.Var], Value: compileDimension(dim)})
	}

	rules := c.Rules()
	branches := bson.A{}
	var fallback segment.Label = segment.Hibernating
	for i, r := range rules {
		if _, ok := r.When.(segment.Always); ok && i == len(rules)-1 {
			fallback = r.Label
			continue
		}
		cond, err := compileExpr(r.When)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Label, err)
		}
		branches = append(branches, bson.D{{Key: "case", Value: cond}, {Key: "then", Value: string(r.Label)}})
	}
	label := bson.D{{Key: "$switch", Value: bson.D{
		{Key: "branches", Value: branches},
		{Key: "default", Value: string(fallback)},
	}}}

	p := []bson.D{
		{{Key: "$project", Value: project}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: label}, {Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		byCountDesc("n"),
	}
	return append(p, limitStage(limit)...), nil
}

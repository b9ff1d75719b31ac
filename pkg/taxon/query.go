package taxon

// Query is the tagged union of prediction inputs: a single text or a map of
// texts to positive weights. The zero Query is invalid.
type Query struct {
	text     string
	weighted map[string]float64
	isText   bool
}

// Text builds a single-text query.
func Text(s string) Query {
	return Query{text: s, isText: true}
}

// Weighted builds a weighted multi-text query.
func Weighted(texts map[string]float64) Query {
	return Query{weighted: texts}
}

func (q Query) valid() bool {
	return q.isText || len(q.weighted) > 0
}

// PredictOptions shapes prediction and relation output.
type PredictOptions struct {
	// Amount requests an exact result count (default 5 when Adaptive is
	// unset).
	Amount int
	// Adaptive cuts the result list at the first score cliff instead of a
	// fixed count, always keeping at least one result.
	Adaptive bool
	// Capitalize title-cases the returned labels.
	Capitalize bool
}

// ReduceInput is the tagged union of clustering inputs: a plain category
// list (every category weighted 1) or a category→relevance map.
type ReduceInput struct {
	categories []string
	weights    map[string]float64
}

// Categories builds an unweighted reduce input.
func Categories(names []string) ReduceInput {
	return ReduceInput{categories: names}
}

// WeightedCategories builds a weighted reduce input.
func WeightedCategories(weights map[string]float64) ReduceInput {
	return ReduceInput{weights: weights}
}

// toWeights normalizes the union to a category→weight map, or nil when the
// input carries neither variant.
func (in ReduceInput) toWeights() map[string]float64 {
	if len(in.weights) > 0 {
		weights := make(map[string]float64, len(in.weights))
		for name, w := range in.weights {
			weights[name] = w
		}
		return weights
	}
	if len(in.categories) > 0 {
		weights := make(map[string]float64, len(in.categories))
		for _, name := range in.categories {
			weights[name] = 1
		}
		return weights
	}
	return nil
}

// ReduceOptions configures clustering.
type ReduceOptions struct {
	// Amount is the desired cluster count K.
	Amount int
}

package search

// Envelope is the uniform result of a hybrid search. Exactly one of two
// shapes is produced: a success envelope (Results/SearchType populated,
// Error empty) or an error envelope (Error/Details populated, Count zero).
// Count always equals len(Results).
type Envelope struct {
	// Results are the retrieved items, ordered by the producing strategy.
	Results []ScoredItem `json:"results"`

	// SearchType records which retrieval path produced Results.
	// Empty on error envelopes.
	SearchType SearchType `json:"searchType,omitempty"`

	// Query echoes the query string the envelope answers.
	Query string `json:"query"`

	// Count is the number of results. Invariant: Count == len(Results).
	Count int `json:"count"`

	// Error is a short failure label ("empty inventory", "search failed").
	// Empty on success envelopes.
	Error string `json:"error,omitempty"`

	// Details carries the underlying failure text for the model to relay.
	Details string `json:"details,omitempty"`
}

// newResultEnvelope builds a success envelope, deriving Count from results so
// the count invariant cannot drift.
func newResultEnvelope(query string, st SearchType, results []ScoredItem) *Envelope {
	if results == nil {
		results = []ScoredItem{}
	}
	return &Envelope{
		Results:    results,
		SearchType: st,
		Query:      query,
		Count:      len(results),
	}
}

// newErrorEnvelope builds an error envelope with zero results.
func newErrorEnvelope(query, label, details string) *Envelope {
	return &Envelope{
		Results: []ScoredItem{},
		Query:   query,
		Error:   label,
		Details: details,
	}
}

package batch

// Report aggregates per-item results of one bulk request.
type Report struct {
	Results   []Result
	Succeeded int
	Failed    int
}

// Add appends an item result and updates the counters.
func (r *Report) Add(res Result) {
	r.Results = append(r.Results, res)
	if res.OK() {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

// Submitted returns the number of items the request carried.
func (r Report) Submitted() int { return r.Succeeded + r.Failed }

// FirstError returns the first failed item, if any.
func (r Report) FirstError() (Result, bool) {
	for _, res := range r.Results {
		if !res.OK() {
			return res, true
		}
	}
	return Result{}, false
}

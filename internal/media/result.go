package media

// Counts tracks how many items survived each pipeline stage.
type Counts struct {
	Limit      int `json:"limit"`
	Initial    int `json:"initial"`
	Filtered   int `json:"filtered"`
	Structured int `json:"structured"`
	Final      int `json:"final"`
}

// PageResult is one page of records.
type PageResult struct {
	Items    []Record `json:"items"`
	More     bool     `json:"more"`
	Page     int      `json:"page"`
	Count    Counts   `json:"count"`
	Complete bool     `json:"complete"`
	// Whole marks items that are the full result rather than one upstream
	// page; the engine cuts the requested page itself.
	Whole bool `json:"-"`
}

// Clone returns a deep copy.
func (p PageResult) Clone() PageResult {
	out := p
	out.Items = make([]Record, len(p.Items))
	for i, r := range p.Items {
		out.Items[i] = r.Clone()
	}
	return out
}

// Failure is the error record returned at the operation boundary.
type Failure struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	RetryAfter int       `json:"retry_after,omitempty"`
}

// Result is the tagged outcome of an operation: data plus a completeness
// flag, or a failure.
type Result struct {
	Kind     Kind        `json:"kind"`
	Complete bool        `json:"complete"`
	Page     *PageResult `json:"page,omitempty"`
	Record   *Record     `json:"record,omitempty"`
	Pack     *Pack       `json:"pack,omitempty"`
	IDs      IDs         `json:"ids,omitempty"`
	Error    *Failure    `json:"error,omitempty"`
}

// OK reports whether the result carries data.
func (r Result) OK() bool {
	return r.Error == nil
}

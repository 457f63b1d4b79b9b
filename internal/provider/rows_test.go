package provider

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRowsDropsMalformed(t *testing.T) {
	t.Parallel()
	type title struct {
		Title string `json:"title"`
		Year  int    `json:"year"`
	}

	tests := map[string]struct {
		body        string
		want        []title
		wantDropped int
	}{
		"all good":      {body: `[{"title":"Heat","year":1995}]`, want: []title{{"Heat", 1995}}},
		"wrong type":    {body: `[{"title":"Heat","year":1995},{"title":"Ali","year":"2001"}]`, want: []title{{"Heat", 1995}}, wantDropped: 1},
		"null":          {body: `null`, want: []title{}},
		"not an object": {body: `[1,{"title":"Heat"}]`, want: []title{{"Heat", 0}}, wantDropped: 1},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var rows Rows[title]
			if err := json.Unmarshal([]byte(tt.body), &rows); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, rows.Items); diff != "" {
				t.Errorf("Items mismatch (-want +got):\n%s", diff)
			}
			if len(rows.Dropped) != tt.wantDropped {
				t.Errorf("Dropped = %v, want %d", rows.Dropped, tt.wantDropped)
			}
		})
	}
}

func TestRowsRejectsNonArrays(t *testing.T) {
	t.Parallel()
	var rows Rows[int]
	if err := json.Unmarshal([]byte(`{"page":1}`), &rows); err == nil {
		t.Error("Unmarshal() of an object succeeded, want an error")
	}
}

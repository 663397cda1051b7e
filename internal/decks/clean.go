package decks

import (
	"encoding/csv"
	"errors"
	"io"
)

// MinCleanFields is the shortest row Clean keeps: a label plus one full group.
const MinCleanFields = 5

// CleanReport counts what Clean kept and dropped.
type CleanReport struct {
	Kept  int
	Short int // rows with fewer than MinCleanFields fields
	Dupes int // rows reusing a string from an earlier kept row
}

// Clean copies well formed rows from r to w.
//
// A row is dropped when it has fewer than MinCleanFields fields or when any of
// its strings (label or item) already appeared in a previously kept row.
func Clean(r io.Reader, w io.Writer) (CleanReport, error) {
	var rep CleanReport
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cw := csv.NewWriter(w)
	seen := make(map[string]struct{})

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rep, err
		}
		if len(row) < MinCleanFields {
			rep.Short++
			continue
		}
		if anySeen(seen, row) {
			rep.Dupes++
			continue
		}
		for _, s := range row {
			seen[s] = struct{}{}
		}
		if err := cw.Write(row); err != nil {
			return rep, err
		}
		rep.Kept++
	}
	cw.Flush()
	return rep, cw.Error()
}

func anySeen(seen map[string]struct{}, row []string) bool {
	for _, s := range row {
		if _, ok := seen[s]; ok {
			return true
		}
	}
	return false
}

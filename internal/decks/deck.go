// internal/decks/deck.go
//
// Category decks: the pool a round's four categories are drawn from.
//
// Source format (CSV, one category per row):
//   label,item1,item2,item3,...
//
// Parsing rules:
//   • Fields are trimmed; empty item fields are dropped.
//   • Rows with fewer than 2 fields, an empty label or no items are skipped.
//   • Rows sharing a label are merged (union, first-seen order kept).

package decks

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/robalobadob/connections/internal/game"
)

// Deck is a named pool of categories.
type Deck struct {
	Name   string
	labels []string            // first-seen order
	items  map[string][]string // label -> items, first-seen order
}

// Parse reads a deck from CSV.
func Parse(name string, r io.Reader) (*Deck, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	d := &Deck{Name: name, items: make(map[string][]string)}
	seen := make(map[string]map[string]struct{})
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("deck %s: %w", name, err)
		}
		if len(row) < 2 {
			continue
		}
		label := strings.TrimSpace(row[0])
		if label == "" {
			continue
		}
		var fresh []string
		for _, f := range row[1:] {
			if it := strings.TrimSpace(f); it != "" {
				fresh = append(fresh, it)
			}
		}
		if len(fresh) == 0 {
			continue
		}
		set, ok := seen[label]
		if !ok {
			set = make(map[string]struct{})
			seen[label] = set
			d.labels = append(d.labels, label)
		}
		for _, it := range fresh {
			if _, dup := set[it]; dup {
				continue
			}
			set[it] = struct{}{}
			d.items[label] = append(d.items[label], it)
		}
	}
	return d, nil
}

// Labels returns the category labels in first-seen order.
func (d *Deck) Labels() []string { return append([]string(nil), d.labels...) }

// Items returns the items of a category, or nil if the label is unknown.
func (d *Deck) Items(label string) []string { return append([]string(nil), d.items[label]...) }

// Len is the number of distinct categories in the deck.
func (d *Deck) Len() int { return len(d.labels) }

// ChooseRound draws one round: four labels uniformly without replacement,
// each reduced to four random items not already used by an earlier pick.
// Returns game.ErrInvalidRoundData when the deck cannot supply a full round.
func (d *Deck) ChooseRound(rng *rand.Rand) ([]game.Category, error) {
	if len(d.labels) < game.CategoryCount {
		return nil, fmt.Errorf("%w: deck %s has %d categories, need %d",
			game.ErrInvalidRoundData, d.Name, len(d.labels), game.CategoryCount)
	}

	picks := rng.Perm(len(d.labels))[:game.CategoryCount]
	used := make(map[string]struct{}, game.TileCount)
	round := make([]game.Category, 0, game.CategoryCount)
	for _, p := range picks {
		label := d.labels[p]
		pool := d.items[label]
		if len(pool) < game.GroupSize {
			return nil, fmt.Errorf("%w: category %q has %d items, need %d",
				game.ErrInvalidRoundData, label, len(pool), game.GroupSize)
		}
		chosen := make([]string, 0, game.GroupSize)
		for _, i := range rng.Perm(len(pool)) {
			if _, dup := used[pool[i]]; dup {
				continue
			}
			chosen = append(chosen, pool[i])
			if len(chosen) == game.GroupSize {
				break
			}
		}
		if len(chosen) < game.GroupSize {
			return nil, fmt.Errorf("%w: category %q shares too many items with other picks",
				game.ErrInvalidRoundData, label)
		}
		for _, it := range chosen {
			used[it] = struct{}{}
		}
		round = append(round, game.Category{Label: label, Items: chosen})
	}
	return round, nil
}

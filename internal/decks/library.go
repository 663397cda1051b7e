// internal/decks/library.go
//
// Library holds every deck the server can draw rounds from.
//
// Loading behavior:
//   1. If a directory is given (DECKS_DIR), every *.csv in it becomes a deck
//      named after the file.
//   2. Otherwise the embedded defaults from the assets package are used.

package decks

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/connections/assets"
)

// ErrUnknownDeck is returned when a deck name is not in the library.
var ErrUnknownDeck = errors.New("unknown deck")

// Library is an immutable set of named decks.
type Library struct {
	decks map[string]*Deck
	names []string
}

// NewLibrary builds a library from already parsed decks.
func NewLibrary(ds ...*Deck) *Library {
	l := &Library{decks: make(map[string]*Deck, len(ds))}
	for _, d := range ds {
		if _, dup := l.decks[d.Name]; !dup {
			l.names = append(l.names, d.Name)
		}
		l.decks[d.Name] = d
	}
	sort.Strings(l.names)
	return l
}

// Load builds the library from dir, or from the embedded decks when dir is empty.
func Load(dir string) (*Library, error) {
	if dir == "" {
		return Embedded()
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("decks: no *.csv files in %s", dir)
	}
	var ds []*Deck
	for _, p := range paths {
		d, err := loadFile(p)
		if err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	return NewLibrary(ds...), nil
}

func loadFile(path string) (*Deck, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	d, err := Parse(name, f)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("deck", name).Int("categories", d.Len()).Msg("loaded deck")
	return d, nil
}

// Embedded builds the library from the decks compiled into the binary.
func Embedded() (*Library, error) {
	names, err := assets.DeckNames()
	if err != nil {
		return nil, err
	}
	var ds []*Deck
	for _, n := range names {
		f, err := assets.OpenDeck(n)
		if err != nil {
			return nil, err
		}
		d, err := Parse(n, f)
		f.Close()
		if err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	return NewLibrary(ds...), nil
}

// Get returns the named deck.
func (l *Library) Get(name string) (*Deck, error) {
	d, ok := l.decks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeck, name)
	}
	return d, nil
}

// Names lists deck names in lexical order.
func (l *Library) Names() []string { return append([]string(nil), l.names...) }

// Stats returns category counts keyed by deck name.
func (l *Library) Stats() map[string]int {
	out := make(map[string]int, len(l.decks))
	for n, d := range l.decks {
		out[n] = d.Len()
	}
	return out
}

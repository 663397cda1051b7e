// Package assets embeds the default category decks.
// Each decks/<name>.csv file becomes a deck called <name>.
package assets

import (
	"embed"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed decks/*.csv
var FS embed.FS

// DeckNames lists the embedded deck names in lexical order.
func DeckNames() ([]string, error) {
	entries, err := fs.ReadDir(FS, "decks")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(path.Ext(e.Name()), ".csv") {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(out)
	return out, nil
}

// OpenDeck opens the embedded CSV for a deck name.
func OpenDeck(name string) (io.ReadCloser, error) {
	return FS.Open("decks/" + name + ".csv")
}

// cmd/deckclean cleans Connections deck CSVs in place.
//
// Rows with fewer than five fields (label + four items) are dropped, as are
// rows that reuse any string from an earlier kept row. Files are rewritten
// atomically.
//
//	deckclean decks/animals.csv decks/food.csv
//	deckclean --dry-run decks/*.csv
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"

	"github.com/robalobadob/connections/internal/decks"
	"github.com/robalobadob/connections/internal/fileutil"
)

type CLI struct {
	Files  []string `arg:"" help:"Deck CSV files to clean" type:"existingfile"`
	DryRun bool     `short:"n" help:"Report what would change without rewriting files"`
}

var (
	fileStyle = lipgloss.NewStyle().Bold(true)
	keptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dropStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("deckclean"),
		kong.Description("Clean Connections deck CSV files"),
		kong.UsageOnError(),
	)

	failed := false
	for _, f := range cli.Files {
		rep, err := cleanFile(f, cli.DryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", f, err)
			failed = true
			continue
		}
		fmt.Println(formatReport(f, rep))
	}
	if failed {
		ctx.Exit(1)
	}
}

func cleanFile(path string, dryRun bool) (decks.CleanReport, error) {
	info, err := os.Stat(path)
	if err != nil {
		return decks.CleanReport{}, err
	}
	in, err := os.Open(path)
	if err != nil {
		return decks.CleanReport{}, err
	}
	defer in.Close()

	if dryRun {
		return decks.Clean(in, io.Discard)
	}
	var rep decks.CleanReport
	err = fileutil.ReplaceAtomic(path, info.Mode().Perm(), func(w io.Writer) error {
		var cerr error
		rep, cerr = decks.Clean(in, w)
		return cerr
	})
	return rep, err
}

func formatReport(path string, rep decks.CleanReport) string {
	return fmt.Sprintf("%s  %s  %s  %s",
		fileStyle.Render(path),
		keptStyle.Render(fmt.Sprintf("kept %d", rep.Kept)),
		dropStyle.Render(fmt.Sprintf("short %d", rep.Short)),
		dropStyle.Render(fmt.Sprintf("duplicate %d", rep.Dupes)),
	)
}

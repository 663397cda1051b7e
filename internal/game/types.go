// internal/game/types.go
//
// Core type definitions for the Connections puzzle engine.
// Defines:
//   - Category: one hidden group of four items.
//   - Tile: one item on the 4x4 board with selection/solved state.
//   - Status / Result: session lifecycle and submission outcomes.
//   - Snapshot: the read-only view handed to presentation layers.

package game

import "errors"

const (
	// CategoryCount is the number of categories in one round.
	CategoryCount = 4
	// GroupSize is the number of items per category and per submission.
	GroupSize = 4
	// TileCount is the number of tiles on the board.
	TileCount = CategoryCount * GroupSize
	// MistakeBudget is the number of mismatches a player may make.
	MistakeBudget = 4
)

var (
	// ErrInvalidRoundData reports a category set that is not a well formed 4x4 round.
	ErrInvalidRoundData = errors.New("invalid round data")
	// ErrInvalidSubmission reports a submission that is not exactly four distinct items.
	ErrInvalidSubmission = errors.New("invalid submission")
)

// Palette is the fixed, cyclic set of colors handed out to solved groups.
var Palette = []string{"light green", "light blue", "pink", "light goldenrod"}

// ColorFor returns the palette color for a solved group index.
// Unsolved tiles (group < 0) get an empty color.
func ColorFor(group int) string {
	if group < 0 {
		return ""
	}
	return Palette[group%len(Palette)]
}

// Category is one hidden grouping the player must discover.
type Category struct {
	Label string   `json:"label"`
	Items []string `json:"items"`
}

// Tile is a single on-board item.
type Tile struct {
	ID          int    // Stable identifier assigned at round start (0..15).
	Item        string // Item name, immutable.
	Category    int    // Index into the session's categories.
	Position    int    // Display slot 0..15.
	Selected    bool   // Part of the current candidate submission.
	Solved      bool   // Revealed; never selectable again.
	SolvedGroup int    // Reveal rank, -1 while unsolved.
}

// Status is the coarse lifecycle state of a session.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusWon        Status = "won"
	StatusLost       Status = "lost"
)

// Terminal reports whether no further gameplay is possible.
func (s Status) Terminal() bool { return s == StatusWon || s == StatusLost }

// Result classifies a submission.
type Result string

const (
	ResultMatch    Result = "match"
	ResultNearMiss Result = "near_miss"
	ResultMismatch Result = "mismatch"
	// ResultIgnored is returned when the session was already finished.
	ResultIgnored Result = "ignored"
)

// Evaluation is the Match Evaluator's verdict.
// Category is the matched (or near-missed) category index, -1 for a mismatch.
type Evaluation struct {
	Result   Result
	Category int
}

// Outcome is what Submit reports back to the caller.
type Outcome struct {
	Result   Result `json:"result"`
	Category string `json:"category,omitempty"` // label, set only on a match
	Status   Status `json:"status"`
	Message  string `json:"message"`
}

// TileView is the presentation-facing copy of a tile.
type TileView struct {
	ID          int    `json:"id"`
	Item        string `json:"item"`
	Position    int    `json:"position"`
	Selected    bool   `json:"selected"`
	Solved      bool   `json:"solved"`
	SolvedGroup int    `json:"solvedGroup"`
	Color       string `json:"color,omitempty"`
}

// RevealedGroup is a solved category in reveal order.
type RevealedGroup struct {
	Label string   `json:"label"`
	Items []string `json:"items"`
	Group int      `json:"group"`
	Color string   `json:"color"`
}

// Snapshot is the full observable state of a session at one point in time.
type Snapshot struct {
	ID                string          `json:"id"`
	Deck              string          `json:"deck,omitempty"`
	Daily             string          `json:"daily,omitempty"`
	Tiles             []TileView      `json:"tiles"` // sorted by position
	MistakesRemaining int             `json:"mistakesRemaining"`
	SolvedCount       int             `json:"solvedCount"`
	Revealed          []RevealedGroup `json:"revealed"`
	Status            Status          `json:"status"`
	Message           string          `json:"message"`
}

// Selected returns the items currently selected, in board order.
func (s Snapshot) Selected() []string {
	var out []string
	for _, t := range s.Tiles {
		if t.Selected {
			out = append(out, t.Item)
		}
	}
	return out
}

// internal/game/engine.go
//
// Core game engine for a single Connections session.
// Responsibilities:
//   - Build a 16-tile board from a validated 4x4 category set.
//   - Enforce the selection limit (at most 4, unsolved tiles only).
//   - Classify submissions via Evaluate and apply match / near miss / mistake.
//   - Track state transitions: in_progress → won/lost.
//
// Notes:
//   - A Session is not safe for concurrent use; callers serialize access
//     (see internal/store).
//   - All randomness flows through the injected *rand.Rand so rounds replay
//     under a fixed seed.
//   - Solved tiles occupy the leading positions, ordered by reveal rank;
//     unsolved tiles follow.
package game

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session holds the state of one round plus its identifying metadata.
type Session struct {
	ID        string    // Unique session identifier (UUID).
	Deck      string    // Deck the round was drawn from, informational.
	Daily     string    // Daily puzzle date key; empty for free play.
	StartedAt time.Time // When the current round started.

	categories        []Category
	tiles             []Tile // indexed by Tile.ID
	reveal            []int  // category indices in reveal order
	mistakesRemaining int
	status            Status
	message           string
	rng               *rand.Rand
}

// Option customises a new Session.
type Option func(*Session)

// WithRand injects the random source used for shuffling.
func WithRand(r *rand.Rand) Option { return func(s *Session) { s.rng = r } }

// WithID overrides the generated session ID.
func WithID(id string) Option { return func(s *Session) { s.ID = id } }

// WithDeck records the deck name the categories came from.
func WithDeck(name string) Option { return func(s *Session) { s.Deck = name } }

// WithDaily marks the session as the daily puzzle for date.
func WithDaily(date string) Option { return func(s *Session) { s.Daily = date } }

// WithStartedAt sets the round start time.
func WithStartedAt(t time.Time) Option { return func(s *Session) { s.StartedAt = t } }

// New constructs a session for the given categories.
// Returns ErrInvalidRoundData if the categories are not a well formed 4x4 round.
func New(categories []Category, opts ...Option) (*Session, error) {
	s := &Session{ID: uuid.NewString()}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if err := s.LoadRound(categories); err != nil {
		return nil, err
	}
	return s, nil
}

// ValidateCategories checks the 4x4 shape of a round:
// exactly 4 uniquely labeled categories of exactly 4 items, with no item
// appearing twice anywhere in the round.
func ValidateCategories(categories []Category) error {
	if len(categories) != CategoryCount {
		return fmt.Errorf("%w: want %d categories, got %d", ErrInvalidRoundData, CategoryCount, len(categories))
	}
	labels := make(map[string]struct{}, CategoryCount)
	items := make(map[string]string, TileCount)
	for _, c := range categories {
		if strings.TrimSpace(c.Label) == "" {
			return fmt.Errorf("%w: empty category label", ErrInvalidRoundData)
		}
		if _, dup := labels[c.Label]; dup {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidRoundData, c.Label)
		}
		labels[c.Label] = struct{}{}
		if len(c.Items) != GroupSize {
			return fmt.Errorf("%w: category %q has %d items, want %d", ErrInvalidRoundData, c.Label, len(c.Items), GroupSize)
		}
		for _, it := range c.Items {
			if strings.TrimSpace(it) == "" {
				return fmt.Errorf("%w: empty item in category %q", ErrInvalidRoundData, c.Label)
			}
			if other, dup := items[it]; dup {
				return fmt.Errorf("%w: item %q in both %q and %q", ErrInvalidRoundData, it, other, c.Label)
			}
			items[it] = c.Label
		}
	}
	return nil
}

// LoadRound replaces the round wholesale: new categories and tiles, a full
// mistake budget, no messages. The board starts shuffled.
// On invalid input the session is left untouched.
func (s *Session) LoadRound(categories []Category) error {
	if err := ValidateCategories(categories); err != nil {
		return err
	}

	cats := make([]Category, len(categories))
	tiles := make([]Tile, 0, TileCount)
	for ci, c := range categories {
		cats[ci] = Category{Label: c.Label, Items: append([]string(nil), c.Items...)}
		for _, it := range c.Items {
			tiles = append(tiles, Tile{Item: it, Category: ci, SolvedGroup: -1})
		}
	}
	// IDs are public handles; number them in random order so they say
	// nothing about categories.
	s.rng.Shuffle(len(tiles), func(i, j int) { tiles[i], tiles[j] = tiles[j], tiles[i] })
	for id := range tiles {
		tiles[id].ID = id
		tiles[id].Position = id
	}

	s.categories = cats
	s.tiles = tiles
	s.reveal = s.reveal[:0]
	s.mistakesRemaining = MistakeBudget
	s.status = StatusInProgress
	s.message = ""
	s.Shuffle()
	return nil
}

// SetRand replaces the random source used by later shuffles and rounds.
func (s *Session) SetRand(r *rand.Rand) {
	if r != nil {
		s.rng = r
	}
}

// ToggleSelection flips the selection of tile id.
//
// It is a no-op (returns false) when the session is finished, the tile is
// solved or unknown, or the tile is unselected while four others already are.
// Deselecting is always allowed.
func (s *Session) ToggleSelection(id int) bool {
	if s.status != StatusInProgress || id < 0 || id >= len(s.tiles) {
		return false
	}
	t := &s.tiles[id]
	if t.Solved {
		return false
	}
	if t.Selected {
		t.Selected = false
		return true
	}
	if s.SelectedCount() >= GroupSize {
		return false
	}
	t.Selected = true
	return true
}

// ClearSelection deselects every tile; solved state is untouched.
func (s *Session) ClearSelection() {
	for i := range s.tiles {
		s.tiles[i].Selected = false
	}
}

// Shuffle applies a uniform random permutation to the unsolved tiles'
// positions. Solved tiles keep the leading band.
func (s *Session) Shuffle() {
	s.reflow()
	unsolved := make([]int, 0, len(s.tiles))
	for _, id := range s.order() {
		if !s.tiles[id].Solved {
			unsolved = append(unsolved, id)
		}
	}
	s.rng.Shuffle(len(unsolved), func(i, j int) {
		unsolved[i], unsolved[j] = unsolved[j], unsolved[i]
	})
	base := len(s.tiles) - len(unsolved)
	for k, id := range unsolved {
		s.tiles[id].Position = base + k
	}
}

// Submit evaluates the current selection and applies the outcome.
//
// A finished session ignores the call. A selection of any size other than
// four returns ErrInvalidSubmission without touching state.
func (s *Session) Submit() (Outcome, error) {
	if s.status.Terminal() {
		return Outcome{Result: ResultIgnored, Status: s.status, Message: s.message}, nil
	}
	selected := s.selectedItems()
	if len(selected) != GroupSize {
		return Outcome{Status: s.status, Message: s.message},
			fmt.Errorf("%w: please select exactly %d tiles (have %d)", ErrInvalidSubmission, GroupSize, len(selected))
	}
	ev, err := Evaluate(selected, s.categories)
	if err != nil {
		return Outcome{Status: s.status, Message: s.message}, err
	}

	out := Outcome{Result: ev.Result}
	switch ev.Result {
	case ResultMatch:
		label := s.categories[ev.Category].Label
		s.solve(ev.Category)
		s.ClearSelection()
		out.Category = label
		s.message = `Solved Category "` + label + `"`
	case ResultNearMiss:
		// selection stays so the player can swap one tile
		s.message = "One Away..."
	case ResultMismatch:
		if s.mistakesRemaining > 0 {
			s.mistakesRemaining--
		}
		s.ClearSelection()
		s.message = fmt.Sprintf("Mistakes left: %d", s.mistakesRemaining)
	}

	s.resolve()
	out.Status, out.Message = s.status, s.message
	return out, nil
}

// resolve applies the terminal transitions after a submission.
func (s *Session) resolve() {
	switch {
	case s.mistakesRemaining <= 0:
		s.status = StatusLost
		for ci := range s.categories {
			if !s.categorySolved(ci) {
				s.solve(ci)
			}
		}
		s.ClearSelection()
		s.message = "Game Over: You lost!\nCategories: " + s.labelList()
	case len(s.reveal) == len(s.categories):
		s.status = StatusWon
		s.message = "Congratulations! You won!\nCategories: " + s.labelList()
	}
}

// solve reveals category ci with the next group index and reflows the board.
func (s *Session) solve(ci int) {
	group := len(s.reveal)
	for i := range s.tiles {
		if s.tiles[i].Category == ci {
			s.tiles[i].Solved = true
			s.tiles[i].Selected = false
			s.tiles[i].SolvedGroup = group
		}
	}
	s.reveal = append(s.reveal, ci)
	s.reflow()
}

func (s *Session) categorySolved(ci int) bool {
	for _, r := range s.reveal {
		if r == ci {
			return true
		}
	}
	return false
}

// reflow renumbers positions: solved tiles first by group, then unsolved
// tiles in their current relative order.
func (s *Session) reflow() {
	ids := s.order()
	sort.SliceStable(ids, func(a, b int) bool {
		ta, tb := s.tiles[ids[a]], s.tiles[ids[b]]
		if ta.Solved != tb.Solved {
			return ta.Solved
		}
		return ta.Solved && ta.SolvedGroup < tb.SolvedGroup
	})
	for pos, id := range ids {
		s.tiles[id].Position = pos
	}
}

// order returns tile IDs sorted by current position.
func (s *Session) order() []int {
	ids := make([]int, len(s.tiles))
	for i := range ids {
		ids[i] = i
	}
	sort.Slice(ids, func(a, b int) bool { return s.tiles[ids[a]].Position < s.tiles[ids[b]].Position })
	return ids
}

func (s *Session) selectedItems() []string {
	var out []string
	for _, id := range s.order() {
		if s.tiles[id].Selected {
			out = append(out, s.tiles[id].Item)
		}
	}
	return out
}

func (s *Session) labelList() string {
	labels := make([]string, len(s.categories))
	for i, c := range s.categories {
		labels[i] = c.Label
	}
	return strings.Join(labels, ", ")
}

// SelectedCount returns the number of currently selected tiles.
func (s *Session) SelectedCount() int {
	n := 0
	for _, t := range s.tiles {
		if t.Selected {
			n++
		}
	}
	return n
}

// Status returns the round's lifecycle state.
func (s *Session) Status() Status { return s.status }

// MistakesRemaining returns the unspent mistake budget.
func (s *Session) MistakesRemaining() int { return s.mistakesRemaining }

// SolvedCount returns how many categories have been revealed.
func (s *Session) SolvedCount() int { return len(s.reveal) }

// Message returns the latest player-facing message.
func (s *Session) Message() string { return s.message }

// MistakesMade is the number of mismatches charged this round.
func (s *Session) MistakesMade() int { return MistakeBudget - s.mistakesRemaining }

// Tiles returns a copy of the tiles indexed by ID.
func (s *Session) Tiles() []Tile { return append([]Tile(nil), s.tiles...) }

// Categories returns a copy of the round's categories in store order.
func (s *Session) Categories() []Category {
	out := make([]Category, len(s.categories))
	for i, c := range s.categories {
		out[i] = Category{Label: c.Label, Items: append([]string(nil), c.Items...)}
	}
	return out
}

// Snapshot captures the observable state for presentation.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:                s.ID,
		Deck:              s.Deck,
		Daily:             s.Daily,
		Tiles:             make([]TileView, 0, len(s.tiles)),
		MistakesRemaining: s.mistakesRemaining,
		SolvedCount:       len(s.reveal),
		Revealed:          make([]RevealedGroup, 0, len(s.reveal)),
		Status:            s.status,
		Message:           s.message,
	}
	for _, id := range s.order() {
		t := s.tiles[id]
		snap.Tiles = append(snap.Tiles, TileView{
			ID:          t.ID,
			Item:        t.Item,
			Position:    t.Position,
			Selected:    t.Selected,
			Solved:      t.Solved,
			SolvedGroup: t.SolvedGroup,
			Color:       ColorFor(t.SolvedGroup),
		})
	}
	for g, ci := range s.reveal {
		c := s.categories[ci]
		snap.Revealed = append(snap.Revealed, RevealedGroup{
			Label: c.Label,
			Items: append([]string(nil), c.Items...),
			Group: g,
			Color: ColorFor(g),
		})
	}
	return snap
}

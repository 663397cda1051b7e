// Package daily derives the puzzle of the day and records daily results.
//
// The round for a date is fixed by HMAC-SHA256(salt, YYYY-MM-DD): the first
// 8 bytes seed the round's random source and the next 8 pick the deck, so
// every player sees the same board on the same UTC day.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/robalobadob/connections/internal/decks"
	"github.com/robalobadob/connections/internal/game"
	"github.com/robalobadob/connections/internal/randutil"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Puzzle identifies one day's round.
type Puzzle struct {
	Date string `json:"date"`
	Deck string `json:"deck"`
	Seed int64  `json:"-"`
}

func digest(date, salt string) []byte {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(date))
	return h.Sum(nil)
}

// Seed returns the deterministic round seed for a date key.
func Seed(date, salt string) int64 {
	return int64(binary.BigEndian.Uint64(digest(date, salt)[:8]))
}

// Pick chooses the puzzle for the UTC day containing t.
// deckNames must be in a stable order (Library.Names is sorted).
func Pick(t time.Time, salt string, deckNames []string) (Puzzle, error) {
	if len(deckNames) == 0 {
		return Puzzle{}, fmt.Errorf("%w: no decks", game.ErrInvalidRoundData)
	}
	date := DateKey(t)
	sum := digest(date, salt)
	idx := binary.BigEndian.Uint64(sum[8:16]) % uint64(len(deckNames))
	return Puzzle{
		Date: date,
		Deck: deckNames[idx],
		Seed: int64(binary.BigEndian.Uint64(sum[:8])),
	}, nil
}

// Round draws the puzzle's categories from lib.
func (p Puzzle) Round(lib *decks.Library) ([]game.Category, error) {
	d, err := lib.Get(p.Deck)
	if err != nil {
		return nil, err
	}
	return d.ChooseRound(randutil.New(p.Seed))
}

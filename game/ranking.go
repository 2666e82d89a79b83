package game

import (
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"typerace/store"
)

// Rank orders players for the leaderboard: finishers first by ascending
// finish time, then everyone else by descending word index. Ties keep the
// order of players.
func Rank(players []*store.Player, progress []*store.Progress, totalWords int, startTime *time.Time) []Standing {
	words := make(map[int64]int, len(progress))
	for _, p := range progress {
		words[p.PlayerID] = p.CurrentWord
	}

	standings := make([]Standing, len(players))
	for i, p := range players {
		s := Standing{
			PlayerID:    p.ID,
			Name:        p.Name,
			CurrentWord: words[p.ID],
			Finished:    p.FinishedAt != nil,
			FinishedAt:  p.FinishedAt,
		}

		switch {
		case s.Finished:
			s.Percent = 100
		case totalWords > 0:
			s.Percent = min(100, float64(s.CurrentWord)*100/float64(totalWords))
		}

		if s.Finished && startTime != nil {
			elapsed := p.FinishedAt.Sub(*startTime).Milliseconds()
			s.ElapsedMs = &elapsed
		}
		standings[i] = s
	}

	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Finished != b.Finished {
			return a.Finished
		}
		if a.Finished {
			return a.FinishedAt.Before(*b.FinishedAt)
		}
		return a.CurrentWord > b.CurrentWord
	})

	for i := range standings {
		standings[i].Place = i + 1
		standings[i].Label = humanize.Ordinal(i + 1)
	}
	return standings
}

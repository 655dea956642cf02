package score

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrNotAScore means the text is not a TimeGuessr result. It is never shown
// to users: most chat messages are not score attempts.
var ErrNotAScore = errors.New("not a score message")

// groupSeparators are the thousands separators seen in shared results:
// comma, dot, apostrophe, space, NBSP and narrow NBSP.
const groupSeparators = ",.' \u00a0\u202f"

var headerPattern = regexp.MustCompile(
	`TimeGuessr\s*#(\d+)\s+(\d{1,3}(?:[,.' \x{00A0}\x{202F}]\d{3})+|\d+)\s*/\s*(\d{1,3}(?:[,.' \x{00A0}\x{202F}]\d{3})+|\d+)`,
)

var (
	placeMarkers = []string{"🌎", "🌍", "🌏"}
	timeMarker   = "📅"
)

// Parse extracts a score from a shared result text.
func Parse(text string) (Parsed, error) {
	loc := headerPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return Parsed{}, ErrNotAScore
	}

	game, err := parseNumber(text[loc[2]:loc[3]])
	if err != nil || game <= 0 {
		return Parsed{}, ErrNotAScore
	}
	points, err := parseNumber(text[loc[4]:loc[5]])
	if err != nil {
		return Parsed{}, ErrNotAScore
	}
	if continuesNumber(text[loc[7]:]) {
		return Parsed{}, ErrNotAScore
	}
	maxPoints, err := parseNumber(text[loc[6]:loc[7]])
	if err != nil || maxPoints == 0 || points > maxPoints {
		return Parsed{}, ErrNotAScore
	}

	rounds := parseRounds(text[loc[1]:])
	if len(rounds) == 0 {
		return Parsed{}, ErrNotAScore
	}

	return Parsed{
		GameNumber: game,
		Score:      points,
		MaxScore:   maxPoints,
		Percentage: Percentage(points, maxPoints),
		Rounds:     rounds,
	}, nil
}

// Percentage returns score/max*100 rounded to one decimal.
func Percentage(points, maxPoints int) float64 {
	if maxPoints <= 0 {
		return 0
	}
	return math.Round(float64(int64(points)*1000)/float64(maxPoints)) / 10
}

// continuesNumber reports whether rest still belongs to the max score, as in
// "25,0001" or "25,000,5". Such headers are malformed.
func continuesNumber(rest string) bool {
	r, size := utf8.DecodeRuneInString(rest)
	if unicode.IsDigit(r) {
		return true
	}
	if !strings.ContainsRune(groupSeparators, r) {
		return false
	}
	next, _ := utf8.DecodeRuneInString(rest[size:])
	return unicode.IsDigit(next)
}

func parseNumber(s string) (int, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	n, err := strconv.ParseInt(digits, 10, 32)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// parseRounds reads up to MaxRounds lines that carry both axis markers.
func parseRounds(body string) []Round {
	var rounds []Round
	for _, line := range strings.Split(body, "\n") {
		if len(rounds) == MaxRounds {
			break
		}
		placeAt := indexAny(line, placeMarkers)
		timeAt := strings.Index(line, timeMarker)
		if placeAt < 0 || timeAt < 0 || timeAt < placeAt {
			continue
		}
		rounds = append(rounds, Round{
			Place: parseTiers(line[placeAt:timeAt]),
			Time:  parseTiers(line[timeAt+len(timeMarker):]),
		})
	}
	return rounds
}

func parseTiers(segment string) []Tier {
	tiers := make([]Tier, 0, 3)
	for _, r := range segment {
		switch r {
		case '🟩':
			tiers = append(tiers, TierHit)
		case '🟨':
			tiers = append(tiers, TierNear)
		case '⬛', '⬜':
			tiers = append(tiers, TierMiss)
		}
	}
	return tiers
}

func indexAny(s string, needles []string) int {
	best := -1
	for _, n := range needles {
		if i := strings.Index(s, n); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

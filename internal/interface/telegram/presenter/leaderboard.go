// Package presenter renders bot replies as Telegram HTML.
package presenter

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/internal/application/query"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

// TryLater is shown whenever a report could not be generated.
const TryLater = "❌ Couldn't load the leaderboard right now. Please try again later."

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD PRESENTER
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardPresenter formats the four report views.
type LeaderboardPresenter struct{}

// NewLeaderboardPresenter creates a new LeaderboardPresenter.
func NewLeaderboardPresenter() *LeaderboardPresenter {
	return &LeaderboardPresenter{}
}

// Daily renders today's game board.
func (p *LeaderboardPresenter) Daily(v *query.DailyView) string {
	if v.GameNumber == 0 {
		return "🏆 <b>Daily leaderboard</b>\n\nNo game has been played today yet."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 <b>Daily leaderboard - Game #%d</b>\n", v.GameNumber)

	if len(v.Entries) == 0 {
		sb.WriteString("\nNo results yet!")
		return sb.String()
	}

	fmt.Fprintf(&sb, "🚴 %d/%d players played today\n", v.PlayedToday, v.TotalPlayers)
	fmt.Fprintf(&sb, "📊 Average: %s points (%s)\n\n",
		FormatInt(int(v.AverageScore+0.5)), formatPercent(v.AverageAccuracy))

	for _, e := range v.Entries {
		fmt.Fprintf(&sb, "%s <b>%s</b>\n", position(e.Rank), html.EscapeString(e.Name))
		fmt.Fprintf(&sb, "   🎯 %s points (%s)\n", FormatInt(e.Score), formatPercent(e.Percentage))
		fmt.Fprintf(&sb, "   ⭐ League points: %d\n\n", e.PointsAwarded)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// Weekly renders the live board or the finalized snapshot.
func (p *LeaderboardPresenter) Weekly(v *query.WeeklyView) string {
	if v.Final {
		return p.snapshot(v)
	}
	return p.live(v)
}

func (p *LeaderboardPresenter) live(v *query.WeeklyView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 <b>Weekly leaderboard (%s)</b> 🔴 <b>LIVE</b>\n\n", timeutil.WeekRange(v.WeekStart))

	if v.IsEmpty() {
		sb.WriteString("No results this week yet.")
		return sb.String()
	}

	sb.WriteString("💡 Bonuses are provisional until the week closes\n\n")

	for _, e := range v.Entries {
		fmt.Fprintf(&sb, "%s <b>%s</b>\n", position(e.Rank), html.EscapeString(e.Name))
		fmt.Fprintf(&sb, "   🎯 Weekly points: %d\n", e.TotalPoints)
		fmt.Fprintf(&sb, "   🏅 Daily wins: %d | ⚡ Best: %s\n", e.DailyWins, FormatInt(e.HighestScore))
		fmt.Fprintf(&sb, "   📥 Days played: %d / 7\n", e.GamesPlayed)
		writeBonuses(&sb, e)
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

func (p *LeaderboardPresenter) snapshot(v *query.WeeklyView) string {
	if v.WeekStart.IsZero() {
		return "🏆 <b>Weekly snapshot</b>\n\n⏰ No week has been finalized yet."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 <b>Weekly snapshot (%s)</b> 📸\n\n", timeutil.WeekRange(v.WeekStart))

	if v.IsEmpty() {
		sb.WriteString("Nobody played that week.")
		return sb.String()
	}

	sb.WriteString("🔒 Final results with bonuses\n\n")

	for _, e := range v.Entries {
		fmt.Fprintf(&sb, "%s <b>%s</b>\n", position(e.Rank), html.EscapeString(e.Name))
		fmt.Fprintf(&sb, "   🎯 Total: %s\n", FormatInt(e.AwardTotal))
		fmt.Fprintf(&sb, "   ⚡ Payout: %d | ✨ Bonus: %d\n", e.Payout, e.BonusPoints)
		fmt.Fprintf(&sb, "   ⭐ Best: %s\n", FormatInt(e.HighestScore))
		writeBonuses(&sb, e)
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

func writeBonuses(sb *strings.Builder, e query.WeeklyEntry) {
	var labels []string
	if e.MostWins {
		labels = append(labels, "👑 Most wins")
	}
	if e.HighScore {
		labels = append(labels, "🔥 High score")
	}
	if len(labels) > 0 {
		fmt.Fprintf(sb, "   %s\n", strings.Join(labels, " • "))
	}
}

// AllTime renders the cross-week standings.
func (p *LeaderboardPresenter) AllTime(v *query.AllTimeView) string {
	var sb strings.Builder
	sb.WriteString("🏆 <b>All-Time leaderboard</b>\n\n")

	if len(v.Entries) == 0 {
		sb.WriteString("No finalized weeks yet.")
		return sb.String()
	}

	for i, e := range v.Entries {
		fmt.Fprintf(&sb, "%s <b>%s</b>\n", position(i+1), html.EscapeString(e.Name))
		fmt.Fprintf(&sb, "   🎯 Total: %s\n", FormatInt(e.TotalPoints))
		fmt.Fprintf(&sb, "   ⚡ Payouts: %s | ✨ Bonus: %s\n", FormatInt(e.Payouts), FormatInt(e.BonusPoints))
		fmt.Fprintf(&sb, "   ⭐ Best: %s\n\n", FormatInt(e.HighestScore))
	}

	return strings.TrimRight(sb.String(), "\n")
}

// PlayerStats renders the !me card.
func (p *LeaderboardPresenter) PlayerStats(r *query.PlayerStatsResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 <b>%s</b>\n\n", html.EscapeString(r.Player.Name))
	fmt.Fprintf(&sb, "🎮 <b>Games played:</b> %d\n", r.Stats.GamesPlayed)
	fmt.Fprintf(&sb, "⚡ <b>Best score:</b> %s\n", FormatInt(r.Stats.BestScore))
	fmt.Fprintf(&sb, "📈 <b>Average score:</b> %s\n", FormatInt(int(r.Stats.AverageScore+0.5)))
	fmt.Fprintf(&sb, "🏅 <b>Daily wins:</b> %d\n", r.Stats.DailyWins)
	fmt.Fprintf(&sb, "🎖️ <b>Weekly wins:</b> %d\n", r.Stats.WeeklyWins)
	fmt.Fprintf(&sb, "🌍 <b>All-Time points:</b> %s", FormatInt(r.Stats.AllTimePoints))
	return sb.String()
}

// ══════════════════════════════════════════════════════════════════════════════
// FORMATTING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// position renders a board position: medals for the top ten, "N." below.
func position(rank int) string {
	if rank >= 1 && rank <= 10 {
		return shared.Rank(rank).Medal()
	}
	return strconv.Itoa(rank) + "."
}

// FormatInt groups thousands with commas.
func FormatInt(n int) string {
	s := strconv.Itoa(n)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}

	var sb strings.Builder
	head := len(s) % 3
	if head > 0 {
		sb.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sign + sb.String()
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// FormatClock renders a local time of day, e.g. "09:00".
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}

package presenter

import (
	"fmt"
	"strings"

	"github.com/timeguessr-liga/timeguessr-bot/internal/application/command"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/ranking"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATIC REPLIES
// ══════════════════════════════════════════════════════════════════════════════

// Pong answers !ping.
const Pong = "TimeGuessr bot is up! 🎯"

// Help lists the commands.
const Help = `🎯 <b>TimeGuessr league commands</b>

📊 <b>Leaderboards</b>
• <code>!d</code> - today's game
• <code>!w</code> - this week (live)
• <code>!lw</code> - last finalized week with bonuses
• <code>!goat</code> - all-time standings
• <code>!me</code> - your personal stats

🔧 <b>Other</b>
• <code>!ping</code> - is the bot alive?
• <code>!pet</code> - pet the bot 🐶
• <code>!points</code> - how scoring works
• <code>!help</code> - this message

🎮 <b>Submitting a score</b>
Share your result from TimeGuessr and paste it here.
Scores count from 09:00 until the next morning's 09:00.`

// Points explains the scoring, rendered from the domain tables.
func Points() string {
	var sb strings.Builder
	sb.WriteString("📋 <b>How scoring works</b>\n\n")

	sb.WriteString("<b>Daily league points</b> (rank → points):\n")
	daily := ranking.DailyPointsTable()
	parts := make([]string, len(daily))
	for i, pts := range daily {
		parts[i] = fmt.Sprintf("%d→%d", i+1, pts)
	}
	sb.WriteString(strings.Join(parts, " · "))
	sb.WriteString("\nRank 10 and below: 0\n\n")

	sb.WriteString("<b>Weekly payouts</b> (by weekly rank, daily points are not added):\n")
	for i, payout := range ranking.WeeklyPayoutTable() {
		fmt.Fprintf(&sb, "%s %d\n", shared.Rank(i+1).Medal(), payout)
	}

	sb.WriteString("\n<b>Weekly bonuses</b>\n")
	fmt.Fprintf(&sb, "+%d for the most daily wins\n", ranking.MostWinsBonus)
	fmt.Fprintf(&sb, "+%d for the week's highest single score\n", ranking.HighScoreBonus)
	sb.WriteString("<i>Ties go to the best weekly average, then the rest of the chain; a tie that survives it awards nobody.</i>\n\n")

	sb.WriteString("<b>All-Time</b>\nThe sum of every weekly payout and bonus you have earned.")
	return sb.String()
}

var petReplies = [...]string{
	"🐶 Woof woof! Thanks for the pets! (%dx)",
	"🐾 The bot wags its tail happily! (%dx)",
	"🦴 Good bot! More pets? (%dx)",
	"😄 The bot is happy! (%dx)",
	"❤️ Thanks for petting the bot! (%dx)",
	"🤗 The bot loves pets! (%dx)",
	"🐕 The bot feels loved! (%dx)",
	"🎉 Petting successful! (%dx)",
	"🍖 I deserve a treat! (%dx)",
	"🎉 <i>jumps around you</i> More, more! (%dx)",
	"🐕 <i>licks your hand</i> You're my favourite human! (%dx)",
}

// PetReplyCount is the number of distinct !pet replies.
const PetReplyCount = len(petReplies)

// Pet renders reply number pick (taken modulo PetReplyCount) with the count.
func Pet(pick int, count int64) string {
	if pick < 0 {
		pick = -pick
	}
	return fmt.Sprintf(petReplies[pick%PetReplyCount], count)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMISSION REPLIES
// ══════════════════════════════════════════════════════════════════════════════

// Submission renders the reply for a score submission. ok is false when the
// outcome gets no reply.
func Submission(r *command.SubmitScoreResult) (text string, ok bool) {
	switch r.Outcome {
	case command.OutcomeAccepted:
		if r.Rank == 0 {
			return fmt.Sprintf("✅ Score saved for game #%d!", r.Parsed.GameNumber), true
		}
		return fmt.Sprintf("✅ Score saved! You're %s today!\n⭐ You earned %d league points!",
			shared.Rank(r.Rank).Medal(), r.Points), true

	case command.OutcomeUnresolvableIdentity:
		return "🤔 I couldn't tell who sent this score. Please post it from your own account, not as the group or a channel.", true

	case command.OutcomeTooEarly:
		return fmt.Sprintf("⏰ Too early! Today's game opens at %s.", FormatClock(r.OpensAt)), true

	case command.OutcomeWrongGameNumber:
		return fmt.Sprintf("🔢 That's game #%d, but today's game is #%d.", r.Parsed.GameNumber, r.ExpectedGame), true

	case command.OutcomeDuplicate:
		return fmt.Sprintf("🙅 You've already submitted your score for game #%d!", r.Parsed.GameNumber), true

	case command.OutcomePersistenceError:
		return "😔 Something went wrong while saving your score. Please try again later.", true

	default:
		return "", false
	}
}

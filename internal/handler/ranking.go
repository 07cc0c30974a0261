package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"stakesim/internal/game/crash"
	"stakesim/internal/service"
)

// RankingHandler handles leaderboard and statistics commands.
type RankingHandler struct {
	rankingService *service.RankingService
	tracker        *service.RTPTracker
	crashGame      *crash.CrashGame
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(rankingService *service.RankingService, tracker *service.RTPTracker, crashGame *crash.CrashGame) *RankingHandler {
	return &RankingHandler{
		rankingService: rankingService,
		tracker:        tracker,
		crashGame:      crashGame,
	}
}

// HandleTop shows the top 10 by balance, profit or wagered.
// Format: /top [balance|profit|wagered]
func (h *RankingHandler) HandleTop(c tele.Context) error {
	var arg string
	if args := c.Args(); len(args) > 0 {
		arg = args[0]
	}
	board, err := service.ParseBoard(arg)
	if err != nil {
		return c.Reply("❌ Usage: /top [balance|profit|wagered]")
	}

	entries, err := h.rankingService.Top(context.Background(), board, service.DefaultTopLimit)
	if err != nil {
		return replyError(c, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Top %d by %s\n", service.DefaultTopLimit, board)
	b.WriteString("━━━━━━━━━━━━━━━\n")
	if len(entries) == 0 {
		b.WriteString("No players yet\n")
	}
	medals := []string{"🥇", "🥈", "🥉"}
	for _, e := range entries {
		rank := fmt.Sprintf("%d.", e.Rank)
		if e.Rank <= len(medals) {
			rank = medals[e.Rank-1]
		}
		fmt.Fprintf(&b, "%s %s: %s\n", rank, e.Username, money(e.Value))
	}
	return c.Reply(b.String())
}

// HandleRTP shows the observed return per game since startup and the
// latest crash points.
func (h *RankingHandler) HandleRTP(c tele.Context) error {
	var b strings.Builder
	b.WriteString("📊 Observed RTP since start\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")

	stats := h.tracker.Snapshot()
	if len(stats) == 0 {
		b.WriteString("No bets yet\n")
	}
	for _, s := range stats {
		fmt.Fprintf(&b, "%-9s %5d bets  wagered %s  RTP %.2f%%\n", s.Game, s.Bets, money(s.Wagered), s.RTP()*100)
	}

	if h.crashGame != nil {
		if points := h.crashGame.History(); len(points) > 0 {
			parts := make([]string, len(points))
			for i, p := range points {
				parts[i] = fmt.Sprintf("%.2fx", p)
			}
			b.WriteString("\n🚀 Last crashes: " + strings.Join(parts, " "))
		}
	}
	return c.Reply(b.String())
}

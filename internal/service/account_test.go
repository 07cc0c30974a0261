package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"stakesim/internal/ledger"
	"stakesim/internal/model"
	"stakesim/internal/repository"
)

func newAccounts(t *testing.T) (*AccountService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	return NewAccountService(store, ledger.DefaultConfig()), store
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "alice", NormalizeUsername("  @Alice "))
	assert.Equal(t, "", NormalizeUsername(" @ "))
}

func TestLoginCreatesOnce(t *testing.T) {
	svc, store := newAccounts(t)
	ctx := context.Background()

	l, created, err := svc.Login(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alice", l.Username())
	assert.True(t, l.Balance().Equal(decimal.NewFromInt(1000)))

	again, created, err := svc.Login(ctx, "@alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, l, again, "one ledger per account")

	_, err = store.Load(ctx, "alice")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

func TestResetBalanceKeepsTotals(t *testing.T) {
	svc, _ := newAccounts(t)
	ctx := context.Background()

	l, err := svc.Ledger(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, l.Debit(ctx, decimal.NewFromInt(300)))

	a, err := svc.ResetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, a.TotalWagered.Equal(decimal.NewFromInt(300)))
}

func TestSetBalance(t *testing.T) {
	svc, store := newAccounts(t)
	ctx := context.Background()

	_, err := svc.SetBalance(ctx, "ghost", decimal.NewFromInt(5))
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)

	_, _, err = svc.Login(ctx, "bob")
	require.NoError(t, err)
	a, err := svc.SetBalance(ctx, "Bob", decimal.RequireFromString("42.50"))
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.RequireFromString("42.50")))

	saved, err := store.Load(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, saved.Balance.Equal(decimal.RequireFromString("42.50")))
}

// Every leaderboard is sorted by its value, descending, and respects the limit.
func TestLeaderboardOrderingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := repository.NewMemoryStore()
		ctx := context.Background()

		n := rapid.IntRange(1, 30).Draw(t, "accounts")
		for i := 0; i < n; i++ {
			wagered := rapid.Int64Range(0, 100000).Draw(t, "wagered")
			err := store.Save(ctx, &model.Account{
				Username:      rapid.StringMatching(`[a-z]{3,10}`).Draw(t, "username"),
				Balance:       decimal.New(rapid.Int64Range(0, 1000000).Draw(t, "balance"), -2),
				TotalWagered:  decimal.New(wagered, -2),
				TotalWinnings: decimal.New(rapid.Int64Range(0, 200000).Draw(t, "winnings"), -2),
			})
			if err != nil {
				t.Fatal(err)
			}
		}
		board := rapid.SampledFrom([]Board{BoardBalance, BoardProfit, BoardWagered}).Draw(t, "board")
		limit := rapid.IntRange(1, 15).Draw(t, "limit")

		entries, err := NewRankingService(store).Top(ctx, board, limit)
		if err != nil {
			t.Fatal(err)
		}

		all, _ := store.List(ctx)
		if want := min(limit, len(all)); len(entries) != want {
			t.Fatalf("got %d entries, want %d", len(entries), want)
		}
		for i := range entries {
			if entries[i].Rank != i+1 {
				t.Fatalf("entry %d has rank %d", i, entries[i].Rank)
			}
			if i > 0 && entries[i].Value.GreaterThan(entries[i-1].Value) {
				t.Fatalf("%s board not descending at %d", board, i)
			}
		}
	})
}

func TestLeaderboardBoards(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	save := func(name string, balance, wagered, winnings int64) {
		require.NoError(t, store.Save(ctx, &model.Account{
			Username:      name,
			Balance:       decimal.NewFromInt(balance),
			TotalWagered:  decimal.NewFromInt(wagered),
			TotalWinnings: decimal.NewFromInt(winnings),
		}))
	}
	save("alice", 500, 1000, 500)
	save("bob", 1200, 100, 300)
	save("carol", 1200, 5000, 5000)

	svc := NewRankingService(store)

	top, err := svc.Top(ctx, BoardBalance, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"bob", "carol", "alice"}, names(top), "ties broken by username")

	top, err = svc.Top(ctx, BoardProfit, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, names(top))
	assert.True(t, top[0].Value.Equal(decimal.NewFromInt(200)))

	top, err = svc.Top(ctx, BoardWagered, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "alice", "bob"}, names(top))

	_, err = ParseBoard("luck")
	assert.Error(t, err)
	b, err := ParseBoard("")
	require.NoError(t, err)
	assert.Equal(t, BoardBalance, b)
}

func names(entries []RankEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Username
	}
	return out
}

func TestRTPTracker(t *testing.T) {
	tr := NewRTPTracker()
	tr.Record(model.BetRecord{Game: model.GameDice, BetAmount: decimal.NewFromInt(10), Result: model.ResultWin, Payout: decimal.NewFromInt(20)})
	tr.Record(model.BetRecord{Game: model.GameDice, BetAmount: decimal.NewFromInt(10), Result: model.ResultLoss, Payout: decimal.Zero})
	tr.Record(model.BetRecord{Game: model.GameMines, BetAmount: decimal.NewFromInt(5), Result: model.ResultLoss, Payout: decimal.Zero})

	d := tr.Stat(model.GameDice)
	assert.Equal(t, 2, d.Bets)
	assert.Equal(t, 1, d.Wins)
	assert.InDelta(t, 1.0, d.RTP(), 1e-9)

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, model.GameDice, snap[0].Game)
	assert.Equal(t, model.GameMines, snap[1].Game)

	assert.Zero(t, tr.Stat(model.GameCrash).RTP())
}

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trentd187/beach-club/internal/bags"
	"github.com/trentd187/beach-club/internal/config"
)

func TestPrintLeaderboard(t *testing.T) {
	var buf bytes.Buffer
	err := printLeaderboard(&buf, []bags.PlayerSummary{
		{Name: "Pat Shore", Wins: 7, Losses: 3, GamesPlayed: 10, WinRate: 70, TournamentWins: 1},
		{Name: "Sandy", Wins: 1, Losses: 1, GamesPlayed: 2, WinRate: 50},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "PLAYER")
	assert.Equal(t, []string{"1", "Pat", "Shore", "7", "3", "70.0", "1"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"2", "Sandy", "1", "1", "50.0", "0"}, strings.Fields(lines[2]))
}

func TestCommandsNeedDatabaseURL(t *testing.T) {
	a := &app{cfg: &config.Config{}, log: zap.NewNop(), out: &bytes.Buffer{}}
	for _, args := range [][]string{{"migrate"}, {"leaderboard"}} {
		p := newParser(a)
		p.Options = 0
		_, err := p.ParseArgs(args)
		assert.EqualError(t, err, "DATABASE_URL is required", args)
	}
}

func TestMigrateRejectsAutoWithDown(t *testing.T) {
	a := &app{cfg: &config.Config{DatabaseURL: "postgres://unused"}, log: zap.NewNop(), out: &bytes.Buffer{}}
	p := newParser(a)
	p.Options = 0
	_, err := p.ParseArgs([]string{"migrate", "--auto", "--down"})
	assert.EqualError(t, err, "--auto cannot be combined with --down")
}

func TestUnknownCommand(t *testing.T) {
	a := &app{cfg: &config.Config{}, log: zap.NewNop(), out: &bytes.Buffer{}}
	p := newParser(a)
	p.Options = 0
	_, err := p.ParseArgs([]string{"nope"})
	require.Error(t, err)
}

package global

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, BaseURL, cfg.BaseURL)
	assert.Equal(t, 1, cfg.NumThreads)
	assert.Equal(t, "w5yudk", cfg.RefCode)
	assert.Equal(t, DelayRange{Min: 5 * time.Second, Max: 10 * time.Second}, cfg.DelayBetweenBatches)
	assert.Equal(t, DelayRange{Min: time.Second, Max: 3 * time.Second}, cfg.DelayApiCalls)
	assert.Equal(t, DelayRange{Min: 4 * time.Second, Max: 5 * time.Second}, cfg.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2, cfg.LoginMaxRetries)
	assert.Equal(t, 2, cfg.VoteMaxRetries)
	assert.False(t, cfg.EnableMemeVoting)
	assert.Equal(t, 10, cfg.MemeVotesPerProject)
	assert.Equal(t, 1, cfg.MemeMinScoreToVote)
	assert.Equal(t, 24*time.Hour, cfg.RestartDelay)
	assert.Equal(t, "account.json", cfg.AccountFile)
	assert.Equal(t, "proxy.txt", cfg.ProxyFile)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("NUM_THREADS", "0")
	t.Setenv("REF_CODE", "abc123")
	t.Setenv("ENABLE_MEME_VOTING", "true")
	t.Setenv("MEME_VOTE_TARGET_PROJECT_ID", "42")
	t.Setenv("LOGIN_MAX_RETRIES", "-4")
	t.Setenv("RESTART_DELAY_HOURS", "0.5")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.NumThreads, "thread count is clamped to one")
	assert.Equal(t, "abc123", cfg.RefCode)
	assert.True(t, cfg.EnableMemeVoting)
	assert.Equal(t, 42, cfg.MemeVoteTargetProjectID)
	assert.Zero(t, cfg.LoginMaxRetries)
	assert.Equal(t, 30*time.Minute, cfg.RestartDelay)
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	// register cleanup for keys the .env file will set
	for _, key := range []string{"VOTE_MAX_RETRIES", "MEME_VOTE_USE_ALL_AVAILABLE_SCORE"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("VOTE_MAX_RETRIES=5\nMEME_VOTE_USE_ALL_AVAILABLE_SCORE=true\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.VoteMaxRetries)
	assert.True(t, cfg.MemeVoteUseAllScore)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoadConfigRejectsInvertedRange(t *testing.T) {
	t.Setenv("RETRY_DELAY_MIN_MS", "5000")
	t.Setenv("RETRY_DELAY_MAX_MS", "1000")

	_, err := LoadConfig("")
	assert.ErrorContains(t, err, "RETRY_DELAY")
}

func TestDelayRangeGetRandomDelay(t *testing.T) {
	r := DelayRange{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond}
	for i := 0; i < 100; i++ {
		d := r.GetRandomDelay()
		assert.GreaterOrEqual(t, d, r.Min)
		assert.LessOrEqual(t, d, r.Max)
	}

	assert.Equal(t, time.Second, DelayRange{Min: time.Second}.GetRandomDelay())
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, SleepContext(ctx, 0), context.Canceled)
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))
	assert.NoError(t, DelayRange{}.Sleep(context.Background()))
}

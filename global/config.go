package global

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const BaseURL = "https://www.coresky.com"

type Config struct {
	BaseURL    string
	NumThreads int
	RefCode    string
	Debug      bool

	DelayBetweenBatches DelayRange
	DelayApiCalls       DelayRange
	RetryDelay          DelayRange
	RequestTimeout      time.Duration

	LoginMaxRetries int
	VoteMaxRetries  int

	EnableMemeVoting        bool
	MemeVoteTargetProjectID int
	MemeVotesPerProject     int
	MemeMinScoreToVote      int
	MemeVoteUseAllScore     bool

	AutoGenerateAccountJSON bool
	SkipIfAlreadyCheckedIn  bool
	RestartDelay            time.Duration

	AccountFile    string
	ProxyFile      string
	PrivateKeyFile string
	AddressFile    string
}

type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

var ConfigFile Config

func (r DelayRange) GetRandomDelay() time.Duration {
	delta := r.Max - r.Min
	if delta <= 0 {
		return r.Min
	}

	return r.Min + time.Duration(rand.Int63n(int64(delta)+1))
}

// Sleep waits for a random delay from the range or until ctx is done.
func (r DelayRange) Sleep(ctx context.Context) error {
	return SleepContext(ctx, r.GetRandomDelay())
}

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("BASE_URL", BaseURL)
	v.SetDefault("NUM_THREADS", 1)
	v.SetDefault("REF_CODE", "w5yudk")
	v.SetDefault("DEBUG", false)
	v.SetDefault("DELAY_BETWEEN_BATCHES_MIN_S", 5)
	v.SetDefault("DELAY_BETWEEN_BATCHES_MAX_S", 10)
	v.SetDefault("DELAY_WORKER_API_CALLS_MIN_MS", 1000)
	v.SetDefault("DELAY_WORKER_API_CALLS_MAX_MS", 3000)
	v.SetDefault("REQUEST_TIMEOUT_S", 30)
	v.SetDefault("LOGIN_MAX_RETRIES", 2)
	v.SetDefault("VOTE_MAX_RETRIES", 2)
	v.SetDefault("RETRY_DELAY_MIN_MS", 4000)
	v.SetDefault("RETRY_DELAY_MAX_MS", 5000)
	v.SetDefault("ENABLE_MEME_VOTING", false)
	v.SetDefault("MEME_VOTE_TARGET_PROJECT_ID", 0)
	v.SetDefault("MEME_VOTES_TO_CAST_PER_PROJECT", 10)
	v.SetDefault("MEME_MIN_SCORE_TO_ATTEMPT_VOTE", 1)
	v.SetDefault("MEME_VOTE_USE_ALL_AVAILABLE_SCORE", false)
	v.SetDefault("AUTO_GENERATE_ACCOUNT_JSON_FROM_TXT", false)
	v.SetDefault("SKIP_IF_ALREADY_CHECKED_IN", false)
	v.SetDefault("RESTART_DELAY_HOURS", 24.0)
	v.SetDefault("ACCOUNT_FILE", "account.json")
	v.SetDefault("PROXY_FILE", "proxy.txt")
	v.SetDefault("PRIVATE_KEY_FILE", "private_key.txt")
	v.SetDefault("ADDRESS_FILE", "address.txt")

	return v
}

// LoadConfig reads envFile (if it exists) into the process environment and
// builds a Config from the environment, falling back to defaults.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := newViper()

	cfg := Config{
		BaseURL:    v.GetString("BASE_URL"),
		NumThreads: v.GetInt("NUM_THREADS"),
		RefCode:    v.GetString("REF_CODE"),
		Debug:      v.GetBool("DEBUG"),
		DelayBetweenBatches: DelayRange{
			Min: time.Duration(v.GetInt("DELAY_BETWEEN_BATCHES_MIN_S")) * time.Second,
			Max: time.Duration(v.GetInt("DELAY_BETWEEN_BATCHES_MAX_S")) * time.Second,
		},
		DelayApiCalls: DelayRange{
			Min: time.Duration(v.GetInt("DELAY_WORKER_API_CALLS_MIN_MS")) * time.Millisecond,
			Max: time.Duration(v.GetInt("DELAY_WORKER_API_CALLS_MAX_MS")) * time.Millisecond,
		},
		RetryDelay: DelayRange{
			Min: time.Duration(v.GetInt("RETRY_DELAY_MIN_MS")) * time.Millisecond,
			Max: time.Duration(v.GetInt("RETRY_DELAY_MAX_MS")) * time.Millisecond,
		},
		RequestTimeout:          time.Duration(v.GetInt("REQUEST_TIMEOUT_S")) * time.Second,
		LoginMaxRetries:         v.GetInt("LOGIN_MAX_RETRIES"),
		VoteMaxRetries:          v.GetInt("VOTE_MAX_RETRIES"),
		EnableMemeVoting:        v.GetBool("ENABLE_MEME_VOTING"),
		MemeVoteTargetProjectID: v.GetInt("MEME_VOTE_TARGET_PROJECT_ID"),
		MemeVotesPerProject:     v.GetInt("MEME_VOTES_TO_CAST_PER_PROJECT"),
		MemeMinScoreToVote:      v.GetInt("MEME_MIN_SCORE_TO_ATTEMPT_VOTE"),
		MemeVoteUseAllScore:     v.GetBool("MEME_VOTE_USE_ALL_AVAILABLE_SCORE"),
		AutoGenerateAccountJSON: v.GetBool("AUTO_GENERATE_ACCOUNT_JSON_FROM_TXT"),
		SkipIfAlreadyCheckedIn:  v.GetBool("SKIP_IF_ALREADY_CHECKED_IN"),
		RestartDelay:            time.Duration(v.GetFloat64("RESTART_DELAY_HOURS") * float64(time.Hour)),
		AccountFile:             v.GetString("ACCOUNT_FILE"),
		ProxyFile:               v.GetString("PROXY_FILE"),
		PrivateKeyFile:          v.GetString("PRIVATE_KEY_FILE"),
		AddressFile:             v.GetString("ADDRESS_FILE"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.NumThreads < 1 {
		c.NumThreads = 1
	}
	if c.LoginMaxRetries < 0 {
		c.LoginMaxRetries = 0
	}
	if c.VoteMaxRetries < 0 {
		c.VoteMaxRetries = 0
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}

	for name, r := range map[string]DelayRange{
		"DELAY_BETWEEN_BATCHES":  c.DelayBetweenBatches,
		"DELAY_WORKER_API_CALLS": c.DelayApiCalls,
		"RETRY_DELAY":            c.RetryDelay,
	} {
		if r.Min < 0 || r.Max < 0 {
			return fmt.Errorf("%s: delays must not be negative", name)
		}
		if r.Max < r.Min {
			return fmt.Errorf("%s: max (%s) is lower than min (%s)", name, r.Max, r.Min)
		}
	}

	return nil
}

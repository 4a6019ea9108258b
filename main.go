package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/kidnextdoor65/coresky/core"
	"github.com/kidnextdoor65/coresky/customTypes"
	"github.com/kidnextdoor65/coresky/global"
	"github.com/kidnextdoor65/coresky/utils"
)

var errNoAccounts = errors.New("no accounts to process")

func logSettings(cfg global.Config) {
	if !cfg.Debug {
		return
	}

	utils.Logf(utils.StatusWarn, "Debug mode is on.")
	utils.Logf(utils.StatusInfo, "Threads: %d", cfg.NumThreads)
	utils.Logf(utils.StatusInfo, "Default ref code: %s", cfg.RefCode)
	utils.Logf(utils.StatusInfo, "Restart delay: %s", cfg.RestartDelay)
	utils.Logf(utils.StatusInfo, "Skip already checked-in accounts: %t", cfg.SkipIfAlreadyCheckedIn)
	utils.Logf(utils.StatusInfo, "Generate account.json from txt: %t", cfg.AutoGenerateAccountJSON)
	utils.Logf(utils.StatusInfo, "Delay between batches: %s - %s", cfg.DelayBetweenBatches.Min, cfg.DelayBetweenBatches.Max)
	utils.Logf(utils.StatusInfo, "Delay between API calls: %s - %s", cfg.DelayApiCalls.Min, cfg.DelayApiCalls.Max)

	if cfg.EnableMemeVoting {
		utils.Logf(utils.StatusInfo, "Meme voting: on")
		if cfg.MemeVoteTargetProjectID == 0 {
			utils.Logf(utils.StatusInfo, "  -> Target project: lowest orderNo")
		} else {
			utils.Logf(utils.StatusInfo, "  -> Target project: %d", cfg.MemeVoteTargetProjectID)
		}
		if cfg.MemeVoteUseAllScore {
			utils.Logf(utils.StatusInfo, "  -> Vote with all available score")
		} else {
			utils.Logf(utils.StatusInfo, "  -> Votes per project: %d", cfg.MemeVotesPerProject)
		}
		utils.Logf(utils.StatusInfo, "  -> Minimum score to vote: %d", cfg.MemeMinScoreToVote)
	} else {
		utils.Logf(utils.StatusInfo, "Meme voting: off")
	}

	utils.Logf(utils.StatusInfo, "Login retries: %d, vote retries: %d, retry delay: %s - %s",
		cfg.LoginMaxRetries, cfg.VoteMaxRetries, cfg.RetryDelay.Min, cfg.RetryDelay.Max)
}

func prepareAccounts(cfg global.Config, store *utils.AccountStore) error {
	if cfg.AutoGenerateAccountJSON {
		utils.Logf(utils.StatusInfo, "Generating %s from %s and %s...", store.Path(), cfg.PrivateKeyFile, cfg.AddressFile)

		accounts, err := utils.GenerateAccountsFromTxt(cfg.PrivateKeyFile, cfg.AddressFile, cfg.RefCode)
		if err == nil {
			if err = store.Upsert(accounts...); err != nil {
				return err
			}
			utils.Logf(utils.StatusSuccess, "Updated %s with %d accounts.", store.Path(), len(accounts))
			return nil
		}

		if !store.Exists() {
			return fmt.Errorf("could not generate %s and it does not exist: %w", store.Path(), err)
		}
		utils.Logf(utils.StatusWarn, "Could not generate accounts (%s), using the existing %s.", err, store.Path())
		return nil
	}

	if !store.Exists() {
		return fmt.Errorf("%s does not exist; create it or set AUTO_GENERATE_ACCOUNT_JSON_FROM_TXT=true", store.Path())
	}

	return nil
}

func runOnce(ctx context.Context, cfg global.Config) error {
	store := utils.NewAccountStore(cfg.AccountFile)

	if err := prepareAccounts(cfg, store); err != nil {
		return err
	}

	proxies, err := utils.LoadProxies(cfg.ProxyFile)
	if err != nil {
		return err
	}
	if len(proxies) == 0 {
		utils.Logf(utils.StatusWarn, "No usable proxies in %s, running without proxy.", cfg.ProxyFile)
	} else {
		utils.Logf(utils.StatusInfo, "Loaded %d proxies from %s.", len(proxies), cfg.ProxyFile)
	}

	accounts, err := store.Read()
	if err != nil {
		return err
	}
	utils.Logf(utils.StatusInfo, "Read %d accounts from %s.", len(accounts), store.Path())

	jobs := core.PrepareJobs(accounts, cfg.RefCode)
	if len(jobs) == 0 {
		return errNoAccounts
	}

	cleaned := make([]customTypes.Account, 0, len(jobs))
	for _, job := range jobs {
		cleaned = append(cleaned, job.Account)
	}
	if err = store.Upsert(cleaned...); err != nil {
		return err
	}

	utils.Logf(utils.StatusInfo, "Processing %d accounts with %d threads...", len(jobs), cfg.NumThreads)

	orchestrator := core.NewOrchestrator(cfg, store, utils.NewProxyRotator(proxies))
	results, err := orchestrator.RunWorkerBatch(ctx, jobs)
	if err != nil {
		return err
	}

	votes := 0
	for _, res := range results {
		votes += res.VotesCastThisRun
	}
	utils.Logf(utils.StatusSuccess, "All accounts processed (%d results, %d votes cast).", len(results), votes)

	return nil
}

// loop runs the orchestrator, then sleeps RestartDelay and runs it again.
func loop(ctx context.Context) error {
	for {
		if err := runOnce(ctx, global.ConfigFile); err != nil {
			return err
		}

		if global.ConfigFile.RestartDelay <= 0 {
			utils.Logf(utils.StatusInfo, "RESTART_DELAY_HOURS <= 0, not restarting.")
			return nil
		}

		if err := utils.StartCountdown(ctx, color.Output, global.ConfigFile.RestartDelay, time.Second); err != nil {
			return err
		}
	}
}

func main() {
	cfg, err := global.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %s", err)
	}
	global.ConfigFile = cfg

	utils.SetDebug(cfg.Debug)
	logSettings(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = loop(ctx)
	stop()

	if errors.Is(err, context.Canceled) {
		utils.Logf(utils.StatusWarn, "Interrupted.")
		return
	}
	if err != nil {
		utils.Logf(utils.StatusError, "%s", err)
		os.Exit(1)
	}
}

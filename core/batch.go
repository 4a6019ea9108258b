package core

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kidnextdoor65/coresky/customTypes"
	"github.com/kidnextdoor65/coresky/global"
	"github.com/kidnextdoor65/coresky/utils"
)

// AccountRunner processes one account.
type AccountRunner func(ctx context.Context, job customTypes.AccountJob) customTypes.AccountResult

// Orchestrator splits accounts into batches of cfg.NumThreads, runs each batch
// concurrently and persists every result before moving on.
type Orchestrator struct {
	cfg     global.Config
	store   *utils.AccountStore
	proxies *utils.ProxyRotator
	run     AccountRunner
}

func NewOrchestrator(cfg global.Config, store *utils.AccountStore, proxies *utils.ProxyRotator) *Orchestrator {
	if proxies == nil {
		proxies = utils.NewProxyRotator(nil)
	}

	o := &Orchestrator{cfg: cfg, store: store, proxies: proxies}
	o.run = o.runFarmer
	return o
}

// WithRunner replaces the per-account pipeline.
func (o *Orchestrator) WithRunner(run AccountRunner) *Orchestrator {
	o.run = run
	return o
}

func (o *Orchestrator) runFarmer(ctx context.Context, job customTypes.AccountJob) customTypes.AccountResult {
	client := GetClient(job.Proxy, o.cfg.RequestTimeout)
	return NewFarmer(o.cfg, job, client, nil).Run(ctx)
}

func (o *Orchestrator) safeRun(ctx context.Context, job customTypes.AccountJob) (result customTypes.AccountResult) {
	defer func() {
		if r := recover(); r != nil {
			utils.LogAction(job.Index, job.Wallet, job.Proxy, fmt.Sprintf("Worker crashed: %v", r), utils.StatusError)
			result = customTypes.AccountResult{
				Account: job.Account,
				Index:   job.Index,
				Proxy:   job.Proxy,
				Status:  customTypes.StatusWorkerCrashed,
				Error:   fmt.Sprintf("worker error: %v", r),
			}
		}
	}()

	return o.run(ctx, job)
}

// PrepareJobs drops accounts without wallet or private key and fills in the
// default referral code.
func PrepareJobs(accounts []customTypes.Account, defaultRef string) []customTypes.AccountJob {
	jobs := make([]customTypes.AccountJob, 0, len(accounts))

	for i, acc := range accounts {
		if strings.TrimSpace(acc.Wallet) == "" || strings.TrimSpace(acc.PrivateKey) == "" {
			utils.LogDebug(i, acc.Wallet, "", "Dropping invalid account.")
			continue
		}

		if strings.TrimSpace(acc.Ref) == "" {
			utils.LogDebug(i, acc.Wallet, "", fmt.Sprintf("No ref code, using default: %s", defaultRef))
			acc.Ref = defaultRef
		}

		jobs = append(jobs, customTypes.AccountJob{Account: acc, Index: i})
	}

	return jobs
}

// RunWorkerBatch processes jobs in batches of at most cfg.NumThreads
// concurrent pipelines, sleeping a random delay between batches.
func (o *Orchestrator) RunWorkerBatch(ctx context.Context, jobs []customTypes.AccountJob) ([]customTypes.AccountResult, error) {
	threads := o.cfg.NumThreads
	if threads < 1 {
		threads = 1
	}

	utils.LogDebug(-1, "", "", fmt.Sprintf("Processing %d accounts with %d threads.", len(jobs), threads))

	results := make([]customTypes.AccountResult, 0, len(jobs))

	for start := 0; start < len(jobs); start += threads {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		end := start + threads
		if end > len(jobs) {
			end = len(jobs)
		}

		batch := make([]customTypes.AccountJob, end-start)
		copy(batch, jobs[start:end])
		for i := range batch {
			batch[i].Proxy = o.proxies.Next()
		}

		batchResults := make([]customTypes.AccountResult, len(batch))

		var g errgroup.Group
		g.SetLimit(threads)
		for i := range batch {
			i := i
			g.Go(func() error {
				batchResults[i] = o.safeRun(ctx, batch[i])
				return nil
			})
		}
		_ = g.Wait()

		toSave := make([]customTypes.Account, 0, len(batchResults))
		for i, res := range batchResults {
			if strings.TrimSpace(res.Wallet) == "" {
				utils.LogAction(batch[i].Index, batch[i].Wallet, batch[i].Proxy, "Worker returned no wallet, result dropped.", utils.StatusWarn)
				continue
			}
			toSave = append(toSave, res.Account)
			results = append(results, res)
		}

		if err := o.store.Upsert(toSave...); err != nil {
			utils.Logf(utils.StatusError, "Failed to update %s: %s", o.store.Path(), err)
		}

		utils.Logf(utils.StatusInfo, "Finished batch %d (%d accounts)", start/threads+1, len(batch))

		if end < len(jobs) {
			delay := o.cfg.DelayBetweenBatches.GetRandomDelay()
			utils.Logf(utils.StatusInfo, "Waiting %s before the next batch...", delay)
			if err := global.SleepContext(ctx, delay); err != nil {
				return results, err
			}
		}
	}

	return results, nil
}

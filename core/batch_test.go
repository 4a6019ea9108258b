package core

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidnextdoor65/coresky/customTypes"
	"github.com/kidnextdoor65/coresky/utils"
)

func makeJobs(n int) []customTypes.AccountJob {
	jobs := make([]customTypes.AccountJob, n)
	for i := range jobs {
		jobs[i] = customTypes.AccountJob{
			Account: customTypes.Account{
				Wallet:     fmt.Sprintf("0x%040x", i+1),
				PrivateKey: fmt.Sprintf("0x%064x", i+1),
				Ref:        "w5yudk",
			},
			Index: i,
		}
	}
	return jobs
}

func echoResult(job customTypes.AccountJob, status string) customTypes.AccountResult {
	res := customTypes.AccountResult{Account: job.Account, Index: job.Index, Proxy: job.Proxy, Status: status}
	res.Token = "token-" + job.Wallet
	return res
}

func TestRunWorkerBatchCapsConcurrency(t *testing.T) {
	cfg := testConfig()
	cfg.NumThreads = 3

	store := utils.NewAccountStore(filepath.Join(t.TempDir(), "account.json"))

	var inFlight, peak atomic.Int32
	runner := func(ctx context.Context, job customTypes.AccountJob) customTypes.AccountResult {
		now := inFlight.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return echoResult(job, customTypes.StatusCompletedNoVotingDisabled)
	}

	orchestrator := NewOrchestrator(cfg, store, nil).WithRunner(runner)
	results, err := orchestrator.RunWorkerBatch(context.Background(), makeJobs(7))
	require.NoError(t, err)

	assert.Len(t, results, 7)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestRunWorkerBatchPersistsWithoutDuplicates(t *testing.T) {
	cfg := testConfig()
	store := utils.NewAccountStore(filepath.Join(t.TempDir(), "account.json"))

	orchestrator := NewOrchestrator(cfg, store, nil).WithRunner(func(ctx context.Context, job customTypes.AccountJob) customTypes.AccountResult {
		return echoResult(job, customTypes.StatusVotedSuccessfully)
	})

	jobs := makeJobs(5)
	for run := 0; run < 2; run++ {
		_, err := orchestrator.RunWorkerBatch(context.Background(), jobs)
		require.NoError(t, err)
	}

	saved, err := store.Read()
	require.NoError(t, err)
	require.Len(t, saved, 5)
	for i, acc := range saved {
		assert.Equal(t, jobs[i].Wallet, acc.Wallet)
		assert.Equal(t, "token-"+jobs[i].Wallet, acc.Token)
	}
}

func TestRunWorkerBatchRotatesProxies(t *testing.T) {
	cfg := testConfig()
	cfg.NumThreads = 2
	store := utils.NewAccountStore(filepath.Join(t.TempDir(), "account.json"))

	var mu sync.Mutex
	seen := map[int]string{}

	rotator := utils.NewProxyRotator([]string{"http://10.0.0.1:8080", "http://10.0.0.2:8080", "http://10.0.0.3:8080"})
	orchestrator := NewOrchestrator(cfg, store, rotator).WithRunner(func(ctx context.Context, job customTypes.AccountJob) customTypes.AccountResult {
		mu.Lock()
		seen[job.Index] = job.Proxy
		mu.Unlock()
		return echoResult(job, customTypes.StatusCompletedNoVotingDisabled)
	})

	_, err := orchestrator.RunWorkerBatch(context.Background(), makeJobs(4))
	require.NoError(t, err)

	assert.Equal(t, map[int]string{
		0: "http://10.0.0.1:8080",
		1: "http://10.0.0.2:8080",
		2: "http://10.0.0.3:8080",
		3: "http://10.0.0.1:8080",
	}, seen)
}

func TestRunWorkerBatchRecoversCrashedWorker(t *testing.T) {
	cfg := testConfig()
	store := utils.NewAccountStore(filepath.Join(t.TempDir(), "account.json"))

	orchestrator := NewOrchestrator(cfg, store, nil).WithRunner(func(ctx context.Context, job customTypes.AccountJob) customTypes.AccountResult {
		if job.Index == 1 {
			panic("boom")
		}
		return echoResult(job, customTypes.StatusVotedSuccessfully)
	})

	results, err := orchestrator.RunWorkerBatch(context.Background(), makeJobs(2))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, customTypes.StatusVotedSuccessfully, results[0].Status)
	assert.Equal(t, customTypes.StatusWorkerCrashed, results[1].Status)
	assert.True(t, strings.Contains(results[1].Error, "boom"))
}

func TestRunWorkerBatchStopsWhenCanceledBetweenBatches(t *testing.T) {
	cfg := testConfig()
	cfg.NumThreads = 1
	cfg.DelayBetweenBatches.Min = time.Hour
	cfg.DelayBetweenBatches.Max = time.Hour
	store := utils.NewAccountStore(filepath.Join(t.TempDir(), "account.json"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	orchestrator := NewOrchestrator(cfg, store, nil).WithRunner(func(ctx context.Context, job customTypes.AccountJob) customTypes.AccountResult {
		runs.Add(1)
		cancel()
		return echoResult(job, customTypes.StatusVotedSuccessfully)
	})

	results, err := orchestrator.RunWorkerBatch(ctx, makeJobs(3))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 1)
	assert.Equal(t, int32(1), runs.Load())

	saved, err := store.Read()
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestPrepareJobs(t *testing.T) {
	accounts := []customTypes.Account{
		{Wallet: "0xaaa", PrivateKey: "0x1"},
		{Wallet: "", PrivateKey: "0x2"},
		{Wallet: "0xccc", PrivateKey: ""},
		{Wallet: "0xddd", PrivateKey: "0x4", Ref: "custom"},
	}

	jobs := PrepareJobs(accounts, "w5yudk")
	require.Len(t, jobs, 2)

	assert.Equal(t, 0, jobs[0].Index)
	assert.Equal(t, "w5yudk", jobs[0].Ref)
	assert.Equal(t, 3, jobs[1].Index)
	assert.Equal(t, "custom", jobs[1].Ref)
}

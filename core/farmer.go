package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/corpix/uarand"
	"github.com/valyala/fasthttp"

	"github.com/kidnextdoor65/coresky/customTypes"
	"github.com/kidnextdoor65/coresky/global"
	"github.com/kidnextdoor65/coresky/utils"
)

const (
	dailyCheckinTaskID = 1
	projectListQuery   = "?sortBy=&search=&tag=&page=1&limit=9&tradeFlag=-1"
	tasksCookie        = "selectWallet=MetaMask"
	missingOrderNo     = 999
)

// Farmer runs the daily pipeline for a single account: sign, login, check-in,
// score, and optionally a meme vote.
type Farmer struct {
	cfg       global.Config
	client    *fasthttp.Client
	signer    MessageSigner
	job       customTypes.AccountJob
	userAgent string
	token     string
	signature string
	result    customTypes.AccountResult
}

// NewFarmer prepares a run for job. A nil signer is built from the account's
// private key when the run starts.
func NewFarmer(cfg global.Config, job customTypes.AccountJob, client *fasthttp.Client, signer MessageSigner) *Farmer {
	return &Farmer{
		cfg:       cfg,
		client:    client,
		signer:    signer,
		job:       job,
		userAgent: uarand.GetRandom(),
		token:     job.Token,
		signature: job.Signature,
	}
}

func (f *Farmer) logf(status utils.LogStatus, format string, args ...interface{}) {
	utils.LogAction(f.job.Index, f.job.Wallet, f.job.Proxy, fmt.Sprintf(format, args...), status)
}

func (f *Farmer) debugf(format string, args ...interface{}) {
	utils.LogDebug(f.job.Index, f.job.Wallet, f.job.Proxy, fmt.Sprintf(format, args...))
}

func (f *Farmer) fail(status string, err error) customTypes.AccountResult {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = customTypes.StatusCanceled
	}
	f.result.Status = status
	f.result.Error = appendError(f.result.Error, err.Error())
	f.logf(utils.StatusError, "%s", err)
	return f.finish()
}

func (f *Farmer) finish() customTypes.AccountResult {
	f.result.Token = f.token
	f.result.Signature = f.signature

	if f.result.Error != "" {
		f.logf(utils.StatusWarn, "Finished. Status: %s. Last error: %s", f.result.Status, f.result.Error)
	} else {
		f.logf(utils.StatusSuccess, "Finished. Status: %s.", f.result.Status)
	}

	return f.result
}

func appendError(existing, message string) string {
	if existing == "" {
		return message
	}
	return existing + "; " + message
}

// Run executes the whole pipeline. It never panics on API errors; every
// outcome is reported through the returned result.
func (f *Farmer) Run(ctx context.Context) customTypes.AccountResult {
	f.result = customTypes.AccountResult{
		Account: f.job.Account,
		Index:   f.job.Index,
		Proxy:   f.job.Proxy,
		Status:  customTypes.StatusPending,
	}

	if strings.TrimSpace(f.job.Wallet) == "" {
		return f.fail(customTypes.StatusAccountDataError, fmt.Errorf("invalid or missing wallet address"))
	}

	f.logf(utils.StatusInfo, "Starting...")
	f.debugf("User-Agent: %s", f.userAgent)

	if f.signer == nil {
		signer, err := NewWalletSigner(f.job.PrivateKey)
		if err != nil {
			return f.fail(customTypes.StatusPrivateKeyError, fmt.Errorf("invalid private key: %w", err))
		}
		f.signer = signer
	}

	if !strings.EqualFold(f.signer.Address(), f.job.Wallet) {
		f.logf(utils.StatusWarn, "Private key belongs to %s, not to this wallet", f.signer.Address())
	}

	if f.signature == "" {
		if err := f.sign(ctx); err != nil {
			return f.fail(customTypes.StatusSignatureCreationFailed, err)
		}
		f.logf(utils.StatusInfo, "Created a new signature.")
	}

	if err := f.warmUp(ctx); err != nil {
		return f.fail(customTypes.StatusCanceled, err)
	}

	if err := f.login(ctx); err != nil {
		return f.fail(customTypes.StatusLoginFailed, err)
	}
	f.result.Status = customTypes.StatusLoginSuccess

	alreadyCheckedIn, err := f.dailyCheckin(ctx)
	if err != nil {
		return f.fail(customTypes.StatusCanceled, err)
	}

	if f.cfg.SkipIfAlreadyCheckedIn && alreadyCheckedIn {
		f.logf(utils.StatusInfo, "Already checked in, skipping the remaining tasks.")
		f.result.Status = customTypes.StatusSkippedAlreadyCheckedIn
		return f.finish()
	}

	score, err := f.fetchScore(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return f.fail(customTypes.StatusCanceled, ctxErr)
	}

	if !f.cfg.EnableMemeVoting {
		if err != nil {
			f.logf(utils.StatusWarn, "Could not fetch score: %s", err)
		}
		f.result.Status = customTypes.StatusCompletedNoVotingDisabled
		return f.finish()
	}

	if err != nil {
		f.result.Status = customTypes.StatusFetchScoreFailed
		f.result.Error = appendError(f.result.Error, fmt.Sprintf("meme voting: failed to fetch user score: %s", err))
		f.logf(utils.StatusWarn, "Could not fetch score, skipping voting: %s", err)
		return f.finish()
	}

	f.vote(ctx, score)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return f.fail(customTypes.StatusCanceled, ctxErr)
	}

	return f.finish()
}

func (f *Farmer) sign(ctx context.Context) error {
	if err := f.cfg.DelayApiCalls.Sleep(ctx); err != nil {
		return err
	}

	f.debugf("Signing: %q", loginMessage(f.job.Wallet))

	signature, err := f.signer.SignMessage(loginMessage(f.job.Wallet))
	if err != nil {
		return fmt.Errorf("signature creation failed: %w", err)
	}

	f.signature = signature
	return nil
}

type callOptions struct {
	cookie  string
	referer string
}

func (f *Farmer) headers(opts callOptions) map[string]string {
	cookie := opts.cookie
	if cookie == "" {
		cookie = fmt.Sprintf("refCode=%s; projectId=0; selectWallet=MetaMask", f.job.Ref)
	}

	referer := opts.referer
	if referer == "" {
		referer = f.cfg.BaseURL + "/meme"
	}

	headers := map[string]string{
		"accept":             "application/json, text/plain, */*",
		"accept-language":    "en-US,en;q=0.9",
		"cookie":             cookie,
		"hearder_gray_set":   "0",
		"priority":           "u=1, i",
		"referer":            referer,
		"origin":             f.cfg.BaseURL,
		"sec-ch-ua-mobile":   "?0",
		"sec-ch-ua-platform": `"macOS"`,
		"sec-fetch-dest":     "empty",
		"sec-fetch-mode":     "cors",
		"sec-fetch-site":     "same-origin",
		"user-agent":         f.userAgent,
	}

	if f.token != "" {
		headers["token"] = f.token
	}

	return headers
}

// baseCall sends one request and never returns an error: failures are folded
// into the callResult the same way the API reports its own errors.
func (f *Farmer) baseCall(endpoint, method string, payload interface{}, opts callOptions) callResult {
	f.debugf("API call: %s %s (token: %t)", method, endpoint, f.token != "")

	body, statusCode, err := doRequest(f.client, f.cfg.BaseURL+endpoint, method, payload, f.headers(opts), f.cfg.RequestTimeout)
	result := parseCallResult(body, statusCode, err)

	if result.Cloudflare {
		f.logf(utils.StatusWarn, "CloudFlare on %s, rotating User-Agent", endpoint)
		f.userAgent = uarand.GetRandom()
	}

	f.debugf("API %s answered %d: %s", endpoint, result.status(), string(result.Body))
	return result
}

// callWithDelay waits a random API delay before baseCall. The error is only
// set when ctx ends during the wait.
func (f *Farmer) callWithDelay(ctx context.Context, endpoint, method string, payload interface{}, opts callOptions) (callResult, error) {
	if err := f.cfg.DelayApiCalls.Sleep(ctx); err != nil {
		return callResult{}, err
	}
	return f.baseCall(endpoint, method, payload, opts), nil
}

// warmUp replays the config requests the web app makes on page load. Their
// answers are not used.
func (f *Farmer) warmUp(ctx context.Context) error {
	calls := []struct {
		endpoint string
		method   string
		payload  interface{}
	}{
		{"/api/user/config", "POST", map[string]interface{}{}},
		{"/api/config/ip", "GET", nil},
		{"/api/activity/message/window", "GET", nil},
		{"/api/config/sys", "POST", map[string]interface{}{}},
		{"/api/config/chains", "GET", nil},
		{"/api/config/paytokens", "POST", map[string]interface{}{}},
		{"/api/config/query", "POST", map[string]interface{}{"chainId": "137"}},
	}

	for _, call := range calls {
		if _, err := f.callWithDelay(ctx, call.endpoint, call.method, call.payload, callOptions{}); err != nil {
			return err
		}
	}

	return nil
}

func (f *Farmer) login(ctx context.Context) error {
	maxAttempts := 1 + f.cfg.LoginMaxRetries
	lastError := "max attempts reached for login"

	attempt := 0
	for attempt < maxAttempts {
		attempt++

		if attempt > 1 {
			f.logf(utils.StatusWarn, "Login attempt %d/%d...", attempt, maxAttempts)
			if err := f.cfg.RetryDelay.Sleep(ctx); err != nil {
				return err
			}
		}

		res, err := f.callWithDelay(ctx, "/api/user/login", "POST", map[string]interface{}{
			"address":   f.job.Wallet,
			"projectId": "0",
			"refCode":   f.job.Ref,
			"signature": f.signature,
		}, callOptions{})
		if err != nil {
			return err
		}

		if res.ok() {
			var data customTypes.LoginResponseStruct
			if err = res.decodeDebug(&data); err == nil && data.Token != "" {
				f.token = data.Token
				f.logf(utils.StatusSuccess, "Logged in (attempt %d).", attempt)
				return nil
			}
			lastError = "login response has no token"
			f.logf(utils.StatusWarn, "Login attempt %d failed: %s", attempt, lastError)
			continue
		}

		lastError = res.describe()
		f.logf(utils.StatusWarn, "Login attempt %d failed. %s", attempt, lastError)

		if isProxyAuthError(res) {
			f.logf(utils.StatusError, "Proxy authentication failed (407), not retrying login on this proxy.")
			break
		}

		if !isRetryableLoginError(res) {
			break
		}

		if isSignError(res) && attempt < maxAttempts {
			f.logf(utils.StatusWarn, "Signature rejected, signing again...")
			if err = f.sign(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				lastError = err.Error()
				break
			}
		}
	}

	return fmt.Errorf("login failed after %d attempt(s): %s", attempt, lastError)
}

// dailyCheckin performs the daily sign-in task and reports whether it had
// already been done today.
func (f *Farmer) dailyCheckin(ctx context.Context) (bool, error) {
	tasksRes, err := f.callWithDelay(ctx, "/api/taskwall/meme/tasks", "GET", nil, callOptions{
		cookie:  tasksCookie,
		referer: f.cfg.BaseURL + "/tasks-rewards",
	})
	if err != nil {
		return false, err
	}

	var tasks []customTypes.TaskStruct
	if !tasksRes.ok() || tasksRes.decodeDebug(&tasks) != nil {
		f.logf(utils.StatusWarn, "Could not fetch tasks for check-in: %s", tasksRes.errorMessage())
		f.result.DailyCheckinStatus = customTypes.CheckinFetchFailed
		return false, nil
	}

	var dailyTask *customTypes.TaskStruct
	for i := range tasks {
		if tasks[i].ID == dailyCheckinTaskID {
			dailyTask = &tasks[i]
			break
		}
	}

	if dailyTask == nil {
		f.logf(utils.StatusWarn, "Daily check-in task (id:%d) not found.", dailyCheckinTaskID)
		f.result.DailyCheckinStatus = customTypes.CheckinTaskNotFound
		return false, nil
	}

	if dailyTask.TaskStatus != 0 {
		f.logf(utils.StatusInfo, "Already checked in today (status: %d).", dailyTask.TaskStatus)
		f.result.DailyCheckinStatus = fmt.Sprintf("ALREADY_CHECKED_IN (Status: %d)", dailyTask.TaskStatus)
		return true, nil
	}

	f.logf(utils.StatusInfo, "Checking in...")
	signRes, err := f.callWithDelay(ctx, "/api/taskwall/meme/sign", "POST", map[string]interface{}{}, callOptions{})
	if err != nil {
		return false, err
	}

	if signRes.ok() {
		f.logf(utils.StatusSuccess, "Daily check-in done.")
		f.result.DailyCheckinStatus = customTypes.CheckinDoneNow
	} else {
		f.logf(utils.StatusError, "Daily check-in failed. %s", signRes.describe())
		f.result.DailyCheckinStatus = customTypes.CheckinFailed
	}

	return false, nil
}

func (f *Farmer) fetchScore(ctx context.Context) (int, error) {
	res, err := f.callWithDelay(ctx, "/api/user/token", "POST", map[string]interface{}{}, callOptions{})
	if err != nil {
		return 0, err
	}

	if !res.ok() {
		return 0, fmt.Errorf("%s", res.errorMessage())
	}

	var data customTypes.UserTokenResponseStruct
	if err = res.decodeDebug(&data); err != nil {
		return 0, fmt.Errorf("failed to parse score: %w", err)
	}
	if !data.Score.Valid {
		return 0, fmt.Errorf("response has no score")
	}

	score := int(data.Score.Value)
	if score < 0 {
		score = 0
	}

	f.logf(utils.StatusInfo, "Current score available for voting: %d", score)
	return score, nil
}

func (f *Farmer) fetchProjects(ctx context.Context) ([]customTypes.MemeProjectStruct, error) {
	maxAttempts := 1 + f.cfg.VoteMaxRetries
	lastError := "could not fetch meme project list"

	attempt := 0
	for attempt < maxAttempts {
		attempt++

		if attempt > 1 {
			f.logf(utils.StatusWarn, "Fetching meme project list, attempt %d/%d...", attempt, maxAttempts)
			if err := f.cfg.RetryDelay.Sleep(ctx); err != nil {
				return nil, err
			}
		}

		res, err := f.callWithDelay(ctx, "/api/meme/project/list"+projectListQuery, "GET", nil, callOptions{})
		if err != nil {
			return nil, err
		}

		if res.ok() {
			var data customTypes.MemeProjectListStruct
			if err = res.decodeDebug(&data); err == nil {
				f.debugf("Fetched %d meme projects.", len(data.Records))
				return data.Records, nil
			}
			lastError = fmt.Sprintf("failed to parse project list: %s", err)
		} else {
			lastError = res.errorMessage()
		}

		f.logf(utils.StatusWarn, "Attempt %d: could not fetch meme project list: %s", attempt, lastError)

		if !isRetryableProjectListError(res) {
			break
		}
	}

	return nil, fmt.Errorf("failed to fetch project list after %d attempt(s): %s", attempt, lastError)
}

// selectProject picks targetID when present, otherwise the project with the
// lowest orderNo. Projects without an orderNo sort last.
func selectProject(projects []customTypes.MemeProjectStruct, targetID int) *customTypes.MemeProjectStruct {
	if targetID != 0 {
		for i := range projects {
			if projects[i].ID == targetID {
				return &projects[i]
			}
		}
	}

	if len(projects) == 0 {
		return nil
	}

	sorted := make([]customTypes.MemeProjectStruct, len(projects))
	copy(sorted, projects)

	orderOf := func(p customTypes.MemeProjectStruct) int {
		if p.OrderNo == 0 {
			return missingOrderNo
		}
		return p.OrderNo
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return orderOf(sorted[i]) < orderOf(sorted[j])
	})

	return &sorted[0]
}

// voteQuantity never exceeds score.
func voteQuantity(score, perProject int, useAllScore bool) int {
	if score <= 0 {
		return 0
	}
	if useAllScore || perProject > score {
		return score
	}
	if perProject < 0 {
		return 0
	}
	return perProject
}

func (f *Farmer) vote(ctx context.Context, score int) {
	if score < f.cfg.MemeMinScoreToVote || score == 0 {
		f.logf(utils.StatusInfo, "Score (%d) below the minimum (%d), skipping voting.", score, f.cfg.MemeMinScoreToVote)
		f.result.Status = customTypes.StatusVoteSkippedLowScore
		return
	}

	projects, err := f.fetchProjects(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		f.logf(utils.StatusError, "%s. Skipping voting.", err)
		f.result.Error = appendError(f.result.Error, fmt.Sprintf("meme voting: %s", err))
		f.result.Status = customTypes.StatusVoteProjectListFailed
		return
	}

	target := selectProject(projects, f.cfg.MemeVoteTargetProjectID)
	if target == nil {
		f.logf(utils.StatusWarn, "No meme project to vote for.")
		f.result.Status = customTypes.StatusCompletedNoVoteTarget
		return
	}

	if f.cfg.MemeVoteTargetProjectID != 0 && target.ID != f.cfg.MemeVoteTargetProjectID {
		f.logf(utils.StatusWarn, "Target project %d not found, voting for %s (ID: %d) instead.", f.cfg.MemeVoteTargetProjectID, target.Name, target.ID)
	}

	votes := voteQuantity(score, f.cfg.MemeVotesPerProject, f.cfg.MemeVoteUseAllScore)
	if votes < 1 {
		f.logf(utils.StatusWarn, "Computed vote count (%d) is below 1, not voting.", votes)
		f.result.Status = customTypes.StatusVoteSkippedNoVotesToCast
		return
	}

	f.logf(utils.StatusInfo, "Voting %d for project %s (ID: %d)", votes, target.Name, target.ID)
	f.castVotes(ctx, *target, votes)
}

func (f *Farmer) castVotes(ctx context.Context, project customTypes.MemeProjectStruct, votes int) {
	maxAttempts := 1 + f.cfg.VoteMaxRetries
	payload := customTypes.VotePayload{ProjectID: project.ID, VoteNum: votes}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			f.logf(utils.StatusWarn, "Vote attempt %d/%d for project %d...", attempt, maxAttempts, project.ID)
			if err := f.cfg.RetryDelay.Sleep(ctx); err != nil {
				return
			}
		}

		res, err := f.callWithDelay(ctx, "/api/taskwall/meme/vote", "POST", payload, callOptions{})
		if err != nil {
			return
		}

		if res.ok() {
			f.logf(utils.StatusSuccess, "Voted %d for %s (attempt %d).", votes, project.Name, attempt)
			f.result.VotesCastThisRun += votes
			f.result.Status = customTypes.StatusVotedSuccessfully
			return
		}

		f.logf(utils.StatusWarn, "Vote attempt %d for %s failed. %s", attempt, project.Name, res.describe())

		if isProxyAuthError(res) || !isRetryableVoteError(res) || attempt == maxAttempts {
			f.result.Error = appendError(f.result.Error, fmt.Sprintf("meme vote for %s failed: %s", project.Name, res.errorMessage()))
			f.result.Status = customTypes.StatusVoteFailed
			return
		}
	}
}

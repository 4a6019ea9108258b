package customTypes

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Account is one record of account.json. The file is keyed by Wallet.
type Account struct {
	Wallet             string `json:"wallet"`
	PrivateKey         string `json:"private_key"`
	Ref                string `json:"ref"`
	Token              string `json:"token"`
	Signature          string `json:"signature"`
	DailyCheckinStatus string `json:"dailyCheckinStatus,omitempty"`
}

// AccountJob is an account scheduled for processing together with its
// position in the full account list.
type AccountJob struct {
	Account
	Index int
	Proxy string
}

// AccountResult is what a single pipeline run reports back to the orchestrator.
// Only the embedded Account is persisted.
type AccountResult struct {
	Account
	Index            int
	Proxy            string
	Status           string
	Error            string
	VotesCastThisRun int
}

const (
	StatusPending                   = "PENDING"
	StatusAccountDataError          = "ACCOUNT_DATA_ERROR"
	StatusPrivateKeyError           = "PRIVATE_KEY_ERROR"
	StatusSignatureCreationFailed   = "SIGNATURE_CREATION_FAILED"
	StatusLoginFailed               = "LOGIN_FAILED"
	StatusLoginSuccess              = "LOGIN_SUCCESS"
	StatusSkippedAlreadyCheckedIn   = "SKIPPED_ALREADY_CHECKED_IN"
	StatusFetchScoreFailed          = "FETCH_SCORE_FAILED"
	StatusVoteSkippedLowScore       = "VOTE_SKIPPED_LOW_SCORE"
	StatusVoteProjectListFailed     = "VOTE_PROJECT_LIST_FAILED"
	StatusVoteSkippedNoVotesToCast  = "VOTE_SKIPPED_NO_VOTES_TO_CAST"
	StatusVotedSuccessfully         = "VOTED_SUCCESSFULLY"
	StatusVoteFailed                = "VOTE_FAILED"
	StatusCompletedNoVotingDisabled = "COMPLETED_NO_VOTING_DISABLED"
	StatusCompletedNoVoteTarget     = "COMPLETED_VOTING_SKIPPED_OR_NO_TARGET"
	StatusWorkerCrashed             = "WORKER_CRASHED"
	StatusCanceled                  = "CANCELED"
)

const (
	CheckinDoneNow      = "CHECKED_IN_NOW"
	CheckinFailed       = "CHECKIN_FAILED"
	CheckinTaskNotFound = "TASK_NOT_FOUND"
	CheckinFetchFailed  = "FETCH_TASKS_FAILED"
)

// ApiResponse is the envelope every coresky endpoint answers with.
type ApiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Debug   json.RawMessage `json:"debug"`
}

type LoginResponseStruct struct {
	Token string `json:"token"`
}

type TaskStruct struct {
	ID         int    `json:"id"`
	TaskName   string `json:"taskName,omitempty"`
	TaskStatus int    `json:"taskStatus"`
}

type UserTokenResponseStruct struct {
	Score FlexibleFloat `json:"score"`
}

type MemeProjectStruct struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	OrderNo int    `json:"orderNo"`
}

type MemeProjectListStruct struct {
	Records []MemeProjectStruct `json:"records"`
}

type VotePayload struct {
	ProjectID int `json:"projectId"`
	VoteNum   int `json:"voteNum"`
}

// FlexibleFloat accepts both JSON numbers and numeric strings.
type FlexibleFloat struct {
	Value float64
	Valid bool
}

func (f *FlexibleFloat) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*f = FlexibleFloat{}
		return nil
	}

	raw = strings.Trim(raw, `"`)
	if raw == "" {
		*f = FlexibleFloat{}
		return nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid numeric value %q: %w", raw, err)
	}

	*f = FlexibleFloat{Value: value, Valid: true}
	return nil
}

func (f FlexibleFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f.Value, 'f', -1, 64)), nil
}

package core

import "strings"

var retryableVoteMessages = []string{
	"please try again later",
	"network error",
	"timeout",
	"limit",
	"system error!",
}

func isRetryableStatus(status int) bool {
	switch status {
	case 500, 502, 503, 504:
		return true
	}
	return status >= 420 && status <= 429
}

func isProxyAuthError(r callResult) bool {
	return r.Failed && r.StatusCode == proxyAuthStatus
}

func isSignError(r callResult) bool {
	return strings.Contains(strings.ToUpper(r.Message), "SIGN_IS_ERROR")
}

func containsFold(text string, substrings ...string) bool {
	lower := strings.ToLower(text)
	for _, s := range substrings {
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// Any transport or HTTP failure is worth another login attempt, as are the
// throttling and signature messages the API answers with.
func isRetryableLoginError(r callResult) bool {
	return r.Failed ||
		isRetryableStatus(r.status()) ||
		containsFold(r.Message, "please try again later", "ip request exceeded limit") ||
		isSignError(r)
}

func isRetryableProjectListError(r callResult) bool {
	return isRetryableStatus(r.status()) || containsFold(r.Message, "system error!")
}

func isRetryableVoteError(r callResult) bool {
	return isRetryableStatus(r.status()) || containsFold(r.errorMessage(), retryableVoteMessages...)
}

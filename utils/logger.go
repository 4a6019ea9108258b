package utils

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

const BrandName = "Coresky"

type LogStatus int

const (
	StatusInfo LogStatus = iota
	StatusSuccess
	StatusWarn
	StatusError
)

var (
	logMu     sync.Mutex
	logOutput io.Writer = color.Output
	debugLogs bool
)

var (
	ipRegex   = regexp.MustCompile(`(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})`)
	hostRegex = regexp.MustCompile(`^(?:https?://)?([^:/]+)`)
)

var statusColor = map[LogStatus]*color.Color{
	StatusInfo:    color.New(color.FgBlue),
	StatusSuccess: color.New(color.FgGreen),
	StatusWarn:    color.New(color.FgYellow),
	StatusError:   color.New(color.FgRed),
}

func SetLogOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	logOutput = w
}

func SetDebug(enabled bool) {
	logMu.Lock()
	defer logMu.Unlock()
	debugLogs = enabled
}

func DebugEnabled() bool {
	logMu.Lock()
	defer logMu.Unlock()
	return debugLogs
}

// ExtractIPFromProxy returns the host part of a proxy URL, used to tag log lines
// without leaking proxy credentials.
func ExtractIPFromProxy(proxyURL string) string {
	if proxyURL == "" {
		return ""
	}

	if parsed, err := url.Parse(proxyURL); err == nil && parsed.Hostname() != "" {
		return parsed.Hostname()
	}

	if match := ipRegex.FindStringSubmatch(proxyURL); match != nil {
		return match[1]
	}

	if match := hostRegex.FindStringSubmatch(proxyURL); match != nil {
		return match[1]
	}

	return proxyURL
}

func formatLine(index int, wallet, proxyURL, message string, now time.Time) string {
	var b strings.Builder

	b.WriteString("[" + BrandName + "]")
	b.WriteString("[" + now.Format("3:04:05 PM") + "]")

	if index >= 0 {
		fmt.Fprintf(&b, "[%d]", index+1)
	}
	if wallet != "" {
		b.WriteString("[" + wallet + "]")
	}
	if ip := ExtractIPFromProxy(proxyURL); ip != "" {
		b.WriteString("[" + ip + "]")
	}

	b.WriteString(" " + message)
	return b.String()
}

// LogAction prints a colorized line tagged with the account index, wallet and
// proxy host. A negative index omits the account tags.
func LogAction(index int, wallet, proxyURL, message string, status LogStatus) {
	line := formatLine(index, wallet, proxyURL, message, time.Now())

	c, ok := statusColor[status]
	if !ok {
		c = color.New(color.FgCyan)
	}

	logMu.Lock()
	defer logMu.Unlock()
	_, _ = c.Fprintln(logOutput, line)
}

// LogDebug is LogAction that is only printed when debug output is enabled.
func LogDebug(index int, wallet, proxyURL, message string) {
	if !DebugEnabled() {
		return
	}
	LogAction(index, wallet, proxyURL, message, StatusInfo)
}

func Logf(status LogStatus, format string, args ...interface{}) {
	LogAction(-1, "", "", fmt.Sprintf(format, args...), status)
}

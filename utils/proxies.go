package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// ProxyRotator hands out proxies round-robin. It is safe for concurrent use.
type ProxyRotator struct {
	mu      sync.Mutex
	proxies []string
	next    int
}

func NewProxyRotator(proxies []string) *ProxyRotator {
	return &ProxyRotator{proxies: proxies}
}

// Next returns the next proxy, or "" when the list is empty.
func (r *ProxyRotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.proxies) == 0 {
		return ""
	}

	proxy := r.proxies[r.next%len(r.proxies)]
	r.next = (r.next + 1) % len(r.proxies)
	return proxy
}

func (r *ProxyRotator) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.proxies)
}

// LoadProxies reads one proxy URL per line. Lines without an http(s) scheme and
// lines mentioning "local" are skipped. A missing file yields an empty list.
func LoadProxies(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var proxies []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.Contains(strings.ToLower(line), "local") {
			continue
		}
		if !strings.HasPrefix(line, "http://") && !strings.HasPrefix(line, "https://") {
			continue
		}
		proxies = append(proxies, line)
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return proxies, nil
}

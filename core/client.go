package core

import (
	"crypto/tls"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpproxy"
)

// GetClient builds a fasthttp client that tunnels through proxy when one is given.
// Proxies are http(s)://[user:pass@]host:port URLs.
func GetClient(proxy string, timeout time.Duration) *fasthttp.Client {
	client := &fasthttp.Client{
		ReadTimeout:                   timeout,
		WriteTimeout:                  timeout,
		MaxIdleConnDuration:           time.Minute,
		NoDefaultUserAgentHeader:      true,
		DisableHeaderNamesNormalizing: true,
		TLSConfig:                     &tls.Config{MinVersion: tls.VersionTLS12},
	}

	if proxy != "" {
		proxyAddr := strings.TrimPrefix(strings.TrimPrefix(proxy, "http://"), "https://")
		client.Dial = fasthttpproxy.FasthttpHTTPDialerTimeout(proxyAddr, timeout)
	}

	return client
}

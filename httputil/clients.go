package httputil

import (
	"net"
	"net/http"
	"net/url"

	"myhome_scrooper/config"
)

// NewScrapingClient builds the client used against the listing API.
// Transparent decompression is disabled: the scraper advertises zstd and
// brotli itself, so it must see the raw Content-Encoding and body.
func NewScrapingClient(sc config.ScraperConfig, proxy config.ProxyConfig) *http.Client {
	dialer := &net.Dialer{Timeout: sc.ConnectTimeout}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		DisableCompression:  true,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		MaxConnsPerHost:     10,
		TLSHandshakeTimeout: sc.ConnectTimeout,
	}

	if proxy.URL != "" {
		if proxyURL, err := url.Parse(proxy.URL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &http.Client{
		Timeout:   sc.RequestTimeout,
		Transport: transport,
	}
}

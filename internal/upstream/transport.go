package upstream

import (
	"fmt"
	"net"
	"net/http"
	"time"
)

// Timeouts for calls to the external API.
const (
	// RefreshTimeout bounds a single refresh call. Exceeding it is a transient failure.
	RefreshTimeout = 10 * time.Second

	// LogoutTimeout bounds the best-effort logout notification.
	LogoutTimeout = 5 * time.Second

	// requestTimeout is the ceiling for any other call, including proxied board requests.
	requestTimeout = 15 * time.Second

	maxRedirects = 5
)

// NewHTTPClient creates the HTTP client used for every external API call.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: requestTimeout,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects")
			}
			// Credentials never follow a redirect to another host.
			if len(via) > 0 && req.URL.Host != via[0].URL.Host {
				req.Header.Del("Authorization")
			}
			return nil
		},
	}
}

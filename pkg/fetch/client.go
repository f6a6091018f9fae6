package fetch

import (
	"fmt"
	"net"
	"net/http"

	"github.com/sirupsen/logrus"

	"webrag/pkg/config"
)

// maxRedirects caps a redirect chain before the client gives up.
const maxRedirects = 10

// NewClient builds the shared HTTP client used by every fetch in the
// process. Pooling limits, timeouts, and the HTTP/2 toggle come from cfg.
func NewClient(cfg config.HTTPClientConfig, log *logrus.Entry) *http.Client {
	// nil means "not set in config", which keeps HTTP/2 on
	forceHTTP2 := true
	if cfg.ForceAttemptHTTP2 != nil {
		forceHTTP2 = *cfg.ForceAttemptHTTP2
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialerTimeout,
			KeepAlive: cfg.DialerKeepAlive,
		}).DialContext,
		ForceAttemptHTTP2:      forceHTTP2,
		MaxIdleConns:           cfg.MaxIdleConns,
		MaxIdleConnsPerHost:    cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:        cfg.IdleConnTimeout,
		TLSHandshakeTimeout:    cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout:  cfg.ExpectContinueTimeout,
		MaxResponseHeaderBytes: 1 << 20, // 1MB
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			log.Debugf("Redirecting: %s -> %s (hop %d)", via[len(via)-1].URL, req.URL, len(via))
			return nil
		},
	}
}

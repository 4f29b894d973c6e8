package httputil

import (
	"net/http"
	"time"
)

// NewScrapingClient returns the client used against the marketplace:
// bounded timeout, no redirect following so delisted pages surface as
// 301/302 instead of landing on the search page.
func NewScrapingClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

package eastmoney

import (
	"github.com/wonny/fundarb/pkg/config"
	"github.com/wonny/fundarb/pkg/httputil"
	"github.com/wonny/fundarb/pkg/logger"
)

// Client handles communication with eastmoney (exchange spot list and NAV history)
// ⭐ SSOT: eastmoney 호출은 이 클라이언트에서만
//
// The client is safe for concurrent use; the enricher's workers share one instance.
// Requests are paced by cfg.RatePerSec.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.EastmoneyConfig
}

// NewClient creates a new eastmoney client
func NewClient(cfg config.EastmoneyConfig, log *logger.Logger) *Client {
	httpClient := httputil.New(log, cfg.Timeout).
		WithHeader("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36").
		WithHeader("Referer", "https://fund.eastmoney.com/").
		WithRateLimit(cfg.RatePerSec)

	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("eastmoney"),
		cfg:        cfg,
	}
}

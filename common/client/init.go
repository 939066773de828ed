package client

import (
	"net/http"
	"time"

	"github.com/xjp-ai/xjp-gateway/common/config"
)

var (
	// HTTPClient is the shared upstream client. One client per process
	// amortizes connection setup across requests.
	HTTPClient *http.Client

	// PricingHTTPClient fetches the pricing catalog; it carries a shorter
	// timeout than relay traffic.
	PricingHTTPClient *http.Client
)

func Init() {
	HTTPClient = &http.Client{}
	if config.RelayTimeout > 0 {
		HTTPClient.Timeout = time.Duration(config.RelayTimeout) * time.Second
	}

	PricingHTTPClient = &http.Client{
		Timeout: 30 * time.Second,
	}
}

func init() {
	Init()
}

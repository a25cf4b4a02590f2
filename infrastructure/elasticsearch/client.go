// Package elasticsearch opens the search cluster connection and verifies it
// with a retried ping before the service starts serving.
package elasticsearch

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	infraconfig "github.com/datacite/lupo-sub003/infrastructure/config"
	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/infrastructure/retry"
)

const pingTimeout = 5 * time.Second

// ConnectRetry governs startup ping attempts.
var ConnectRetry = retry.Config{
	MaxAttempts:  5,
	InitialDelay: 2 * time.Second,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
	IsRetryable:  func(error) bool { return true },
}

// NewClient builds a client for cfg and pings it until it answers.
func NewClient(ctx context.Context, cfg infraconfig.ElasticsearchConfig, log logger.Logger) (*es.Client, error) {
	url := NormalizeURL(cfg.URL)

	client, err := es.NewClient(es.Config{
		Addresses:  []string{url},
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	log.Info("Verifying Elasticsearch connection", logger.String("url", url))
	if err = retry.Retry(ctx, ConnectRetry, func() error { return Ping(ctx, client) }); err != nil {
		return nil, fmt.Errorf("connect to elasticsearch %s: %w", url, err)
	}
	log.Info("Elasticsearch connection established", logger.String("url", url))

	return client, nil
}

// NormalizeURL adds an http scheme when none is given.
func NormalizeURL(url string) string {
	switch {
	case url == "":
		return "http://localhost:9200"
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return url
	default:
		return "http://" + url
	}
}

// Ping returns an error unless the cluster answers 2xx within pingTimeout.
func Ping(ctx context.Context, client *es.Client) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	res, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("ping [%s]: %s", res.Status(), body)
	}
	return nil
}

package elasticsearch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"winsentry/config"

	"github.com/cenkalti/backoff"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog/log"
)

func clientConfig(cfg config.ElasticsearchConfig) elasticsearch.Config {
	transport := &http.Transport{
		MaxIdleConnsPerHost:   10,
		ResponseHeaderTimeout: 10 * time.Second,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
	}
	return elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	}
}

func connectBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = 90 * time.Second
	return backoff.WithContext(b, ctx)
}

// NewTypedClient connects with retries and verifies the cluster answers.
func NewTypedClient(ctx context.Context, cfg config.ElasticsearchConfig) (*elasticsearch.TypedClient, error) {
	if len(cfg.Addresses) == 0 {
		log.Error().Msg("Elasticsearch addresses are not configured.")
		return nil, errors.New("elasticsearch configuration missing")
	}

	var client *elasticsearch.TypedClient
	operation := func() error {
		var err error
		client, err = elasticsearch.NewTypedClient(clientConfig(cfg))
		if err != nil {
			log.Warn().Err(err).Msg("Attempt failed: Error creating the Elasticsearch client")
			return err
		}
		info, err := client.Info().Do(ctx)
		if err != nil {
			if isAuthError(err) {
				return backoff.Permanent(err)
			}
			log.Warn().Err(err).Msg("Attempt failed: Elasticsearch ping failed")
			return err
		}
		log.Info().Str("cluster", info.ClusterName).Str("version", info.Version.Int).Msg("Elasticsearch client initialized and connection verified!")
		return nil
	}

	log.Info().Strs("addresses", cfg.Addresses).Msg("Attempting to connect to Elasticsearch with retries...")
	if err := backoff.Retry(operation, connectBackoff(ctx)); err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	return client, nil
}

// NewClient is the low-level client counterpart of NewTypedClient, used for bulk indexing.
func NewClient(ctx context.Context, cfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("elasticsearch configuration missing")
	}

	var client *elasticsearch.Client
	operation := func() error {
		var err error
		client, err = elasticsearch.NewClient(clientConfig(cfg))
		if err != nil {
			log.Warn().Err(err).Msg("Attempt failed: Error creating the Elasticsearch client")
			return err
		}
		res, err := client.Info(client.Info.WithContext(ctx))
		if err != nil {
			log.Warn().Err(err).Msg("Attempt failed: Error during Elasticsearch Info() call (transport level)")
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			errMsg := fmt.Errorf("elasticsearch Info() returned error status: %s", res.Status())
			if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
				return backoff.Permanent(errMsg)
			}
			log.Warn().Err(errMsg).Msg("Attempt failed: Elasticsearch ping returned error status")
			return errMsg
		}
		log.Info().Msg("Elasticsearch client initialized and connection verified!")
		return nil
	}

	if err := backoff.Retry(operation, connectBackoff(ctx)); err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	return client, nil
}

package cmd

import (
	"fmt"
	"log"

	"github.com/Ashfaaq98/incident-triage/internal/classify"
	"github.com/Ashfaaq98/incident-triage/internal/pipeline"
	"github.com/Ashfaaq98/incident-triage/internal/reputation"
)

// buildClassifier loads the configured model once; an empty path means the
// input is already flagged upstream and every row passes through.
func buildClassifier(config Config, logger *log.Logger) (classify.Classifier, error) {
	if config.Classifier.ModelPath == "" {
		logger.Println("no classifier model configured, treating every row as a flagged incident")
		return classify.Passthrough{}, nil
	}
	model, err := classify.LoadModel(config.Classifier.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}
	logger.Printf("classifier model loaded from %s", config.Classifier.ModelPath)
	return model, nil
}

// buildPipeline assembles the triage pipeline with reputation enrichment
// when an oracle API key is configured. The returned closer releases the
// reputation cache, if any.
func buildPipeline(config Config, logger *log.Logger) (*pipeline.Pipeline, func(), error) {
	classifier, err := buildClassifier(config, logger)
	if err != nil {
		return nil, nil, err
	}

	var (
		lookup *reputation.Lookup
		closer = func() {}
	)
	oracleConfigured := config.Reputation.APIKey != ""
	if oracleConfigured {
		client := reputation.NewClient(reputation.ClientOptions{
			BaseURL: config.Reputation.BaseURL,
			APIKey:  config.Reputation.APIKey,
			Timeout: config.Reputation.Timeout,
			Logger:  logger,
		})
		cache := reputation.NewCache(config.Reputation.RedisURL, config.Reputation.CacheSize, logger)
		closer = func() { _ = cache.Close() }
		lookup = reputation.NewLookup(client, cache, reputation.LookupOptions{
			Workers:     config.Reputation.Workers,
			CallTimeout: config.Reputation.Timeout,
			CacheTTL:    config.Reputation.CacheTTL,
			Logger:      logger,
		})
	} else {
		logger.Println("no reputation API key configured, IP enrichment disabled")
	}

	pipe := pipeline.New(pipeline.Options{
		Classifier:       classifier,
		Lookup:           lookup,
		OracleConfigured: oracleConfigured,
		Logger:           logger,
	})
	return pipe, closer, nil
}

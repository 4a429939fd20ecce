// Command smoketest sweeps a running gateway with live requests: both
// protocol dialects, streamed and unary, plus the token counter and the
// model listing, for every configured model. It exits non-zero when any
// probe fails, so it can gate deploys.
//
// Configuration comes from the environment: SMOKE_API_BASE, SMOKE_API_KEY,
// SMOKE_MODELS and SMOKE_VARIANTS.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Laisky/errors/v2"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger, err := glog.NewConsoleWithName("smoketest", glog.LevelInfo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %+v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("smoke sweep failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("all probes passed")
}

// run orchestrates the sweep across the configured models and variants.
func run(ctx context.Context, logger glog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	variantLabels := make([]string, 0, len(cfg.Variants))
	for _, v := range cfg.Variants {
		variantLabels = append(variantLabels, v.Header)
	}
	logger.Info("starting gateway smoke sweep",
		zap.String("base_url", cfg.APIBase),
		zap.Int("model_count", len(cfg.Models)),
		zap.Int("variant_count", len(cfg.Variants)),
		zap.Strings("variants", variantLabels),
	)

	// The timeout covers the whole body read, so it has to outlast a full
	// streamed completion, not just the first byte.
	httpClient := &http.Client{Timeout: 120 * time.Second}
	resultsCh := make(chan testResult, len(cfg.Models)*len(cfg.Variants))

	var (
		results   []testResult
		collectWg sync.WaitGroup
	)
	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		for res := range resultsCh {
			results = append(results, res)
			switch {
			case res.Success:
				logger.Info("probe succeeded",
					zap.String("model", res.Model),
					zap.String("variant", res.Label),
					zap.Bool("stream", res.Stream),
					zap.Duration("duration", res.Duration),
					zap.Int("status", res.StatusCode),
				)
			case res.Skipped:
				logger.Info("probe skipped",
					zap.String("model", res.Model),
					zap.String("variant", res.Label),
					zap.Int("status", res.StatusCode),
					zap.String("reason", res.ErrorReason),
				)
			default:
				logger.Warn("probe failed",
					zap.String("model", res.Model),
					zap.String("variant", res.Label),
					zap.Bool("stream", res.Stream),
					zap.Duration("duration", res.Duration),
					zap.Int("status", res.StatusCode),
					zap.String("error", res.ErrorReason),
					zap.String("request_body", res.RequestBody),
					zap.String("response_body", res.ResponseBody),
				)
			}
		}
	}()

	grp, grpCtx := errgroup.WithContext(ctx)
	for _, model := range cfg.Models {
		grp.Go(func() error {
			executeModelSweep(grpCtx, httpClient, cfg, model, resultsCh)
			return nil
		})
	}

	err = grp.Wait()
	close(resultsCh)
	collectWg.Wait()
	if err != nil {
		return errors.Wrap(err, "await model sweeps")
	}

	rep := buildReport(cfg.Models, cfg.Variants, results)
	renderReport(rep)

	if rep.failedCount > 0 {
		return errors.Errorf("%d of %d probes failed", rep.failedCount, rep.totalRequests)
	}

	return nil
}

// executeModelSweep runs every selected variant against one model and
// publishes the outcomes.
func executeModelSweep(ctx context.Context, client *http.Client, cfg config, model string, results chan<- testResult) {
	grp, grpCtx := errgroup.WithContext(ctx)
	for _, spec := range buildRequestSpecs(model, cfg.Variants) {
		if reason, skip := shouldSkipVariant(model, spec); skip {
			outcome := testResult{
				Model:       model,
				Variant:     spec.Variant,
				Label:       spec.Label,
				Type:        spec.Type,
				Stream:      spec.Stream,
				Skipped:     true,
				ErrorReason: reason,
			}
			select {
			case results <- outcome:
			case <-grpCtx.Done():
			}
			continue
		}
		grp.Go(func() error {
			res := performRequest(grpCtx, client, cfg.APIBase, cfg.APIKey, spec)
			select {
			case results <- res:
			case <-grpCtx.Done():
			}
			return nil
		})
	}

	_ = grp.Wait()
}

// buildRequestSpecs constructs the concrete probes for one model.
func buildRequestSpecs(model string, variants []requestVariant) []requestSpec {
	specs := make([]requestSpec, 0, len(variants))
	for _, variant := range variants {
		var body any
		switch variant.Type {
		case requestTypeClaudeMessages:
			body = claudeMessagesPayload(model, variant.Stream, variant.Expectation)
		case requestTypeChatCompletion:
			body = chatCompletionPayload(model, variant.Stream, variant.Expectation)
		case requestTypeCountTokens:
			body = countTokensPayload(model)
		case requestTypeModelList:
			// GET, no body.
		}
		specs = append(specs, requestSpec{
			Model:       model,
			Variant:     variant.Key,
			Label:       variant.Header,
			Type:        variant.Type,
			Method:      variant.Method,
			Path:        variant.Path,
			Body:        body,
			Stream:      variant.Stream,
			Expectation: variant.Expectation,
		})
	}
	return specs
}

// shouldSkipVariant reports whether a model/variant combination is known to
// be unsupported before any request is spent on it.
func shouldSkipVariant(model string, spec requestSpec) (string, bool) {
	if spec.Expectation != expectationToolInvocation && spec.Expectation != expectationVision {
		return "", false
	}
	if _, legacy := legacyTextOnlyModels[model]; legacy {
		return model + " predates tool use and vision input", true
	}
	return "", false
}

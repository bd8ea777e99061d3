package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-coins/config"
	"github.com/aluiziolira/go-scrape-coins/models"
)

// BotDefenseSignals are matched case-insensitively against response bodies.
var BotDefenseSignals = []string{"captcha", "blocked", "access denied"}

// Fetcher performs a single request attempt.
type Fetcher interface {
	FetchOnce(ctx context.Context, url string, identity models.Identity) (*RawResponse, error)
}

// Controller drives sequential fetch attempts with identity rotation and a
// linearly increasing backoff scaled by the profile's minimum interval.
type Controller struct {
	fetcher    Fetcher
	identities IdentityPool
	metrics    *Metrics
	wait       func(ctx context.Context, d time.Duration) error
}

// NewController builds a controller. An empty pool uses DefaultIdentities.
func NewController(fetcher Fetcher, identities IdentityPool, metrics *Metrics) *Controller {
	if len(identities) == 0 {
		identities = DefaultIdentities()
	}
	return &Controller{
		fetcher:    fetcher,
		identities: identities,
		metrics:    metrics,
		wait:       sleepContext,
	}
}

// Backoff returns the wait before attempt (zero-based).
func Backoff(profile models.SourceProfile, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return profile.MinRequestInterval() * time.Duration(attempt+1)
}

// DetectBotDefense returns the first bot-defense signal found in body.
func DetectBotDefense(body string) (string, bool) {
	lower := strings.ToLower(body)
	for _, signal := range BotDefenseSignals {
		if strings.Contains(lower, signal) {
			return signal, true
		}
	}
	return "", false
}

// Scrape attempts target up to maxAttempts times (clamped to
// 1..config.MaxAttemptsLimit) and returns on the first clean response.
// Attempts are strictly sequential. When ctx is done the loop stops and the
// outcome carries ctx.Err(). A backoff that would outlast ctx's deadline ends
// the loop early with the last attempt's error.
func (c *Controller) Scrape(ctx context.Context, target string, profile models.SourceProfile, maxAttempts int) *models.ScrapeOutcome {
	maxAttempts = min(max(maxAttempts, 1), config.MaxAttemptsLimit)

	outcome := &models.ScrapeOutcome{}
	log := slog.With(slog.String("url", target), slog.String("domain", profile.Domain))

	for i := 0; i < maxAttempts; i++ {
		identity := c.identities.At(i)

		if i > 0 {
			backoff := Backoff(profile, i)
			if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < backoff {
				log.Debug("backoff exceeds scrape deadline",
					slog.Int("attempt", i+1),
					slog.Duration("backoff", backoff),
				)
				break
			}
			c.metrics.IncRetries()
			if err := c.wait(ctx, backoff); err != nil {
				outcome.Err = err
				return outcome
			}
		}

		attempt := models.ScrapeAttempt{
			Identity:  identity.Name,
			StartedAt: time.Now(),
		}
		outcome.IdentityUsed = identity
		outcome.AttemptsUsed = i + 1

		resp, err := c.fetcher.FetchOnce(ctx, target, identity)
		attempt.Duration = time.Since(attempt.StartedAt)

		if ctxErr := ctx.Err(); ctxErr != nil {
			attempt.Err = ctxErr
			outcome.Attempts = append(outcome.Attempts, attempt)
			outcome.Err = ctxErr
			return outcome
		}

		if err != nil {
			var te *TransportError
			if errors.As(err, &te) {
				attempt.HTTPStatus = te.StatusCode
			}
			attempt.Err = err
			outcome.Err = err
			outcome.Attempts = append(outcome.Attempts, attempt)
			c.metrics.IncError(errorTypeLabel(err))
			log.Debug("attempt failed",
				slog.Int("attempt", i+1),
				slog.String("identity", identity.Name),
				slog.String("category", errorTypeLabel(err)),
				slog.Any("error", err),
			)
			continue
		}

		attempt.HTTPStatus = resp.StatusCode
		if signal, found := DetectBotDefense(resp.Body); found {
			attempt.BotDefenseDetected = true
			attempt.Err = fmt.Errorf("%w: matched %q (status %d)", ErrBotDefense, signal, resp.StatusCode)
			outcome.Err = attempt.Err
			outcome.Attempts = append(outcome.Attempts, attempt)
			c.metrics.IncBotDefense()
			c.metrics.IncError(errorTypeLabel(attempt.Err))

			level := slog.LevelDebug
			if !profile.HasAntiBot {
				level = slog.LevelWarn
			}
			log.Log(ctx, level, "bot defense detected",
				slog.Int("attempt", i+1),
				slog.String("identity", identity.Name),
				slog.String("signal", signal),
				slog.Bool("expected", profile.HasAntiBot),
			)
			continue
		}

		attempt.Body = resp.Body
		outcome.Attempts = append(outcome.Attempts, attempt)
		outcome.Success = true
		outcome.Body = resp.Body
		outcome.Err = nil
		return outcome
	}

	log.Info("scrape attempts exhausted",
		slog.Int("attempts", outcome.AttemptsUsed),
		slog.Any("error", outcome.Err),
	)
	return outcome
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

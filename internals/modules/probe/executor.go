package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"sentinel/config"
	"sentinel/internals/modules/monitor"
	"sentinel/pkg/httpclient"
	"sentinel/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Executor runs single-location HTTP(S) checks. Every call yields exactly one
// CheckResult; transport faults become failed results, never errors.
type Executor struct {
	clients       map[monitor.Location]*http.Client
	defaultClient *http.Client
	store         ResultStore
	userAgent     string
	maxBodyBytes  int64
	now           func() time.Time
	logger        *zerolog.Logger
}

func NewExecutor(cfg *config.ProbeConfig, store ResultStore, logger *zerolog.Logger) (*Executor, error) {
	defaultClient, err := httpclient.NewHttpClient(httpclient.Options{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		DisableKeepAlives:  true,
	})
	if err != nil {
		return nil, err
	}

	// one client per vantage point so each can egress through its own proxy
	clients := make(map[monitor.Location]*http.Client, len(cfg.Locations))
	for loc, lc := range cfg.Locations {
		c, err := httpclient.NewHttpClient(httpclient.Options{
			ProxyURL:           lc.ProxyURL,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			DisableKeepAlives:  true,
		})
		if err != nil {
			return nil, fmt.Errorf("probe location %s: %w", loc, err)
		}
		clients[monitor.Location(loc)] = c
	}

	return &Executor{
		clients:       clients,
		defaultClient: defaultClient,
		store:         store,
		userAgent:     cfg.UserAgent,
		maxBodyBytes:  cfg.MaxBodyBytes,
		now:           time.Now,
		logger:        logger,
	}, nil
}

func (e *Executor) client(loc monitor.Location) *http.Client {
	if c, ok := e.clients[loc]; ok {
		return c
	}
	return e.defaultClient
}

// ExecuteCheck probes m from loc and persists the outcome.
func (e *Executor) ExecuteCheck(ctx context.Context, m monitor.Monitor, loc monitor.Location) CheckResult {
	result := e.probe(ctx, m, loc)

	if e.store != nil {
		if err := e.store.SaveResult(ctx, result); err != nil {
			e.logger.Error().Err(err).
				Str("monitor_id", m.ID.String()).
				Str("location", string(loc)).
				Msg("failed to persist check result")
		}
	}

	var elapsed time.Duration
	if result.ResponseTimeMs != nil {
		elapsed = time.Duration(*result.ResponseTimeMs) * time.Millisecond
	}
	metrics.RecordCheck(string(loc), result.Success, elapsed)

	return result
}

func (e *Executor) probe(ctx context.Context, m monitor.Monitor, loc monitor.Location) CheckResult {
	result := CheckResult{
		ID:        uuid.New(),
		MonitorID: m.ID,
		Location:  loc,
	}

	reqCtx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, m.URL, nil)
	if err != nil {
		// the url was validated at creation, so this is our fault rather than the target's
		result.CheckedAt = e.now()
		result.ErrorMessage = errorMessage(ErrClassInvalidRequest, err)
		return result
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	start := time.Now()
	resp, err := e.client(loc).Do(req)
	latency := time.Since(start).Milliseconds()
	result.CheckedAt = e.now()

	if err != nil {
		// this can be DNS err, network err, TLS err or context timeout
		result.ErrorMessage = errorMessage(classifyError(err), err)
		e.logger.Debug().
			Str("monitor_id", m.ID.String()).
			Str("location", string(loc)).
			Str("error", result.ErrorMessage).
			Msg("probe failed")
		return result
	}
	defer resp.Body.Close()

	if e.maxBodyBytes > 0 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, e.maxBodyBytes))
	}

	code := resp.StatusCode
	result.StatusCode = &code
	result.ResponseTimeMs = &latency
	result.TLS = tlsInfo(resp.TLS, result.CheckedAt)

	if m.AcceptsStatus(code) {
		result.Success = true
	} else {
		result.ErrorMessage = fmt.Sprintf("unexpected status code %d", code)
	}

	return result
}

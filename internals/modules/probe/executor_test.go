package probe

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"sentinel/config"
	"sentinel/internals/modules/monitor"
	"sentinel/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	mu      sync.Mutex
	results []CheckResult
	err     error
}

func (s *recordingStore) SaveResult(_ context.Context, r CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return s.err
}

func newTestExecutor(t *testing.T, store ResultStore) *Executor {
	t.Helper()
	e, err := NewExecutor(&config.ProbeConfig{
		InsecureSkipVerify: true,
		UserAgent:          "sentinel-test",
		MaxBodyBytes:       1 << 10,
	}, store, logger.Nop())
	require.NoError(t, err)
	return e
}

func testMonitor(url string, codes ...int) monitor.Monitor {
	if len(codes) == 0 {
		codes = []int{200}
	}
	return monitor.Monitor{
		ID:                  uuid.New(),
		TenantID:            uuid.New(),
		URL:                 url,
		Interval:            time.Minute,
		Timeout:             2 * time.Second,
		ExpectedStatusCodes: codes,
		Locations:           []monitor.Location{monitor.LocationUSEast},
		FailureThreshold:    3,
		Enabled:             true,
	}
}

func TestExecuteCheckSuccess(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &recordingStore{}
	e := newTestExecutor(t, store)
	m := testMonitor(srv.URL)

	res := e.ExecuteCheck(context.Background(), m, monitor.LocationUSEast)

	assert.True(t, res.Success)
	assert.NotEqual(t, uuid.Nil, res.ID)
	assert.Equal(t, m.ID, res.MonitorID)
	assert.Equal(t, monitor.LocationUSEast, res.Location)
	require.NotNil(t, res.StatusCode)
	assert.Equal(t, 200, *res.StatusCode)
	require.NotNil(t, res.ResponseTimeMs)
	assert.GreaterOrEqual(t, *res.ResponseTimeMs, int64(0))
	assert.Empty(t, res.ErrorMessage)
	assert.Nil(t, res.TLS)
	assert.Equal(t, "sentinel-test", gotUA)

	require.Len(t, store.results, 1)
	assert.Equal(t, res.ID, store.results[0].ID)
}

func TestExecuteCheckUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := newTestExecutor(t, nil)
	res := e.ExecuteCheck(context.Background(), testMonitor(srv.URL, 200, 204), monitor.LocationUSEast)

	assert.False(t, res.Success)
	require.NotNil(t, res.StatusCode)
	assert.Equal(t, 503, *res.StatusCode)
	assert.Equal(t, "unexpected status code 503", res.ErrorMessage)
}

func TestExecuteCheckAcceptsAnyExpectedCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	e := newTestExecutor(t, nil)
	res := e.ExecuteCheck(context.Background(), testMonitor(srv.URL, 200, 204), monitor.LocationUSEast)
	assert.True(t, res.Success)
}

func TestExecuteCheckTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	e := newTestExecutor(t, nil)
	m := testMonitor(srv.URL)
	m.Timeout = 50 * time.Millisecond

	start := time.Now()
	res := e.ExecuteCheck(context.Background(), m, monitor.LocationUSEast)

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, res.Success)
	assert.Nil(t, res.StatusCode)
	assert.True(t, strings.HasPrefix(res.ErrorMessage, ErrClassTimeout+": "), res.ErrorMessage)
}

func TestExecuteCheckConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store := &recordingStore{}
	e := newTestExecutor(t, store)
	res := e.ExecuteCheck(context.Background(), testMonitor(url), monitor.LocationUSEast)

	assert.False(t, res.Success)
	assert.True(t, strings.HasPrefix(res.ErrorMessage, ErrClassConnectionRefused+": "), res.ErrorMessage)
	assert.Len(t, store.results, 1, "failed probes are persisted too")
}

func TestExecuteCheckCapturesTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := newTestExecutor(t, nil)
	res := e.ExecuteCheck(context.Background(), testMonitor(srv.URL), monitor.LocationUSEast)

	require.True(t, res.Success, res.ErrorMessage)
	require.NotNil(t, res.TLS)
	assert.NotEmpty(t, res.TLS.Issuer)
	assert.NotEmpty(t, res.TLS.Subject)

	leaf := srv.Certificate()
	assert.True(t, leaf.NotAfter.Equal(res.TLS.ExpiresAt))
	assert.Equal(t, DaysUntilExpiry(leaf.NotAfter, res.CheckedAt), res.TLS.DaysUntilExpiry)
}

func TestExecuteCheckReturnsResultWhenPersistenceFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	e := newTestExecutor(t, &recordingStore{err: errors.New("db down")})
	res := e.ExecuteCheck(context.Background(), testMonitor(srv.URL), monitor.LocationUSEast)
	assert.True(t, res.Success)
}

func TestExecuteCheckInvalidURL(t *testing.T) {
	e := newTestExecutor(t, nil)
	res := e.ExecuteCheck(context.Background(), testMonitor("://bad"), monitor.LocationUSEast)
	assert.False(t, res.Success)
	assert.True(t, strings.HasPrefix(res.ErrorMessage, ErrClassInvalidRequest), res.ErrorMessage)
}

func TestDaysUntilExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 7, DaysUntilExpiry(now.Add(7*day), now))
	assert.Equal(t, 8, DaysUntilExpiry(now.Add(7*day+time.Minute), now))
	assert.Equal(t, 1, DaysUntilExpiry(now.Add(time.Second), now))
	assert.Equal(t, 0, DaysUntilExpiry(now, now))
	assert.Equal(t, -1, DaysUntilExpiry(now.Add(-day), now))
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("get: %w", context.DeadlineExceeded), ErrClassTimeout},
		{&net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}, ErrClassDNS},
		{&net.DNSError{Err: "i/o timeout", Name: "slow.example", IsTimeout: true}, ErrClassTimeout},
		{fmt.Errorf("tls: %w", x509.UnknownAuthorityError{}), ErrClassTLS},
		{&net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, ErrClassConnectionRefused},
		{&net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}, ErrClassNetwork},
		{errors.New("boom"), ErrClassUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyError(tc.err), tc.err.Error())
	}
}

// Package adapters checks that a source's gRPC adapter endpoint answers.
package adapters

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultTimeout = 5 * time.Second

// Stage says where a connectivity test failed.
type Stage string

const (
	StageEndpoint Stage = "endpoint"
	StageConnect  Stage = "connect"
	StageHealth   Stage = "health"
)

// Result is the outcome of one connectivity test.
type Result struct {
	Endpoint string        `json:"endpoint"`
	Passed   bool          `json:"passed"`
	Stage    Stage         `json:"stage,omitempty"`
	Status   string        `json:"status,omitempty"`
	Message  string        `json:"message"`
	Latency  time.Duration `json:"latency"`
	TestedAt time.Time     `json:"testedAt"`
}

// PassedFor reports whether the result is a pass for endpoint. A pass for an
// endpoint the company no longer uses does not count.
func (r Result) PassedFor(endpoint string) bool {
	return r.Passed && r.Endpoint != "" && r.Endpoint == NormaliseEndpoint(endpoint)
}

// Tester dials an adapter and calls the standard gRPC health service.
type Tester struct {
	timeout     time.Duration
	dialOptions []grpc.DialOption
	nowTime     func() time.Time
}

// TesterOption defines a function type to modify the Tester instance.
type TesterOption func(*Tester)

// WithTimeout bounds the whole test, dial included
func WithTimeout(d time.Duration) TesterOption {
	return func(t *Tester) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) TesterOption {
	return func(t *Tester) {
		t.nowTime = nowFunc
	}
}

func NewTester(options ...TesterOption) *Tester {
	t := &Tester{
		timeout: defaultTimeout,
		dialOptions: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		},
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// NormaliseEndpoint strips a grpc:// scheme and surrounding whitespace
func NormaliseEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimPrefix(endpoint, "grpc://")
	return strings.TrimSuffix(endpoint, "/")
}

// Test runs one health check against endpoint. Failures are reported in the
// Result, never as an error, since a failed test is an expected outcome.
func (t *Tester) Test(ctx context.Context, endpoint string) Result {
	started := t.nowTime()
	endpoint = NormaliseEndpoint(endpoint)
	result := Result{Endpoint: endpoint, TestedAt: started}

	if err := validateEndpoint(endpoint); err != nil {
		return t.fail(result, StageEndpoint, err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	conn, err := grpc.NewClient(endpoint, t.dialOptions...)
	if err != nil {
		return t.fail(result, StageConnect, err)
	}
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	result.Latency = t.nowTime().Sub(started)
	if err != nil {
		return t.fail(result, StageConnect, err)
	}

	result.Status = resp.GetStatus().String()
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return t.fail(result, StageHealth, errors.Errorf("adapter reported %s", result.Status))
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Connected to %s", endpoint)
	log.Info().Str("endpoint", endpoint).Dur("latency", result.Latency).Msg("Adapter connectivity test passed")
	return result
}

func (t *Tester) fail(result Result, stage Stage, err error) Result {
	result.Stage = stage
	switch stage {
	case StageEndpoint:
		result.Message = "The gRPC endpoint must be in host:port form."
	case StageHealth:
		result.Message = fmt.Sprintf("The adapter at %s is not serving (%s).", result.Endpoint, result.Status)
	default:
		result.Message = fmt.Sprintf("Could not connect to the adapter at %s.", result.Endpoint)
	}
	log.Warn().Err(err).Str("endpoint", result.Endpoint).Str("stage", string(stage)).Msg("Adapter connectivity test failed")
	return result
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return errors.New("endpoint is empty")
	}
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return errors.Wrap(err, "split host and port")
	}
	if host == "" || port == "" {
		return errors.New("host and port are required")
	}
	return nil
}

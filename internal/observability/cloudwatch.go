package observability

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/jonboulle/clockwork"

	"meteoalert/internal/alerts"
)

// CloudWatchClient is the subset of the CloudWatch API used here.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// PutMetricData accepts at most 1000 data points per call.
const cloudWatchMaxBatch = 1000

// CloudWatchMetrics buffers data points in memory and publishes them in
// batches, so recording never blocks a request on the AWS API.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	clock     clockwork.Clock
	logger    *slog.Logger

	mu  sync.Mutex
	buf []cwtypes.MetricDatum
}

// NewCloudWatchMetrics creates a buffered publisher for namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, clock clockwork.Clock, logger *slog.Logger) *CloudWatchMetrics {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, clock: clock, logger: logger}
}

func (m *CloudWatchMetrics) add(name string, value float64, unit cwtypes.StandardUnit, dims ...string) {
	d := cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(m.clock.Now()),
	}
	for i := 0; i+1 < len(dims); i += 2 {
		d.Dimensions = append(d.Dimensions, cwtypes.Dimension{Name: aws.String(dims[i]), Value: aws.String(dims[i+1])})
	}
	m.mu.Lock()
	m.buf = append(m.buf, d)
	m.mu.Unlock()
}

// RecordRequest buffers request latency, dimensioned by method, route and status.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint string, status int, d time.Duration) {
	m.add("RequestLatency", float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds,
		"Method", method, "Endpoint", endpoint, "Status", strconv.Itoa(status))
}

// RecordProviderCall buffers weather provider latency per operation and outcome.
func (m *CloudWatchMetrics) RecordProviderCall(op, outcome string, d time.Duration) {
	m.add("ProviderLatency", float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds, "Op", op, "Outcome", outcome)
}

// RecordEvaluation counts one evaluation and each clause it triggered.
func (m *CloudWatchMetrics) RecordEvaluation(clauses []alerts.Clause) {
	result := "clear"
	if len(clauses) > 0 {
		result = "alert"
	}
	m.add("AlertEvaluation", 1, cwtypes.StandardUnitCount, "Result", result)
	for _, c := range clauses {
		m.add("AlertClause", 1, cwtypes.StandardUnitCount, "Clause", string(c))
	}
}

// RecordDispatch counts a push dispatch outcome.
func (m *CloudWatchMetrics) RecordDispatch(outcome string) {
	m.add("PushDispatch", 1, cwtypes.StandardUnitCount, "Outcome", outcome)
}

// RecordCacheLookup counts a cache hit, miss or error.
func (m *CloudWatchMetrics) RecordCacheLookup(result string) {
	m.add("CacheLookup", 1, cwtypes.StandardUnitCount, "Result", result)
}

// RecordPollCycle buffers the duration and counts of one poller cycle.
func (m *CloudWatchMetrics) RecordPollCycle(users, failed int, d time.Duration) {
	m.add("PollCycleDuration", float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds)
	m.add("PollUsers", float64(users), cwtypes.StandardUnitCount)
	m.add("PollFailures", float64(failed), cwtypes.StandardUnitCount)
}

// Flush publishes everything buffered so far. Data points from a failed
// batch are dropped and logged.
func (m *CloudWatchMetrics) Flush(ctx context.Context) error {
	m.mu.Lock()
	pending := m.buf
	m.buf = nil
	m.mu.Unlock()

	var firstErr error
	for start := 0; start < len(pending); start += cloudWatchMaxBatch {
		end := min(start+cloudWatchMaxBatch, len(pending))
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: pending[start:end],
		})
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to publish metrics", "error", err, "dropped", end-start)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Run flushes every interval until ctx is done, then flushes once more with
// a short grace period.
func (m *CloudWatchMetrics) Run(ctx context.Context, interval time.Duration) {
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = m.Flush(flushCtx)
			cancel()
			return
		case <-ticker.Chan():
			_ = m.Flush(ctx)
		}
	}
}

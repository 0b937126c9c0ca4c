package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-listing-sync/internal/dispatch"
)

// Metric names emitted per outcome.
const (
	MetricEventsProcessed = "EventsProcessed"
	MetricSyncFailures    = "SyncFailures"
)

// CloudWatchObserver publishes one EventsProcessed datum per outcome and one
// SyncFailures datum per failed sub-call.
type CloudWatchObserver struct {
	client    CloudWatchAPI
	namespace string
	timeout   time.Duration
	log       zerolog.Logger
}

func NewCloudWatchObserver(client CloudWatchAPI, namespace string, log zerolog.Logger) *CloudWatchObserver {
	return &CloudWatchObserver{
		client:    client,
		namespace: namespace,
		timeout:   2 * time.Second,
		log:       log.With().Str("component", "cloudwatch").Logger(),
	}
}

// ObserveOutcome implements dispatch.Observer. Errors are logged only.
func (o *CloudWatchObserver) ObserveOutcome(ctx context.Context, outcome dispatch.Outcome) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	now := time.Now()
	table := dimension("Table", outcome.Table)
	data := []cwtypes.MetricDatum{{
		MetricName: awsString(MetricEventsProcessed),
		Dimensions: []cwtypes.Dimension{table, dimension("State", string(outcome.State()))},
		Timestamp:  &now,
		Unit:       cwtypes.StandardUnitCount,
		Value:      awsFloat(1),
	}}
	for _, target := range outcome.FailedTargets() {
		data = append(data, cwtypes.MetricDatum{
			MetricName: awsString(MetricSyncFailures),
			Dimensions: []cwtypes.Dimension{table, dimension("Target", target)},
			Timestamp:  &now,
			Unit:       cwtypes.StandardUnitCount,
			Value:      awsFloat(1),
		})
	}

	_, err := o.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  awsString(o.namespace),
		MetricData: data,
	})
	if err != nil {
		o.log.Warn().Err(err).Str("fingerprint", string(outcome.Fingerprint)).Msg("put metric data failed")
	}
}

func dimension(name, value string) cwtypes.Dimension {
	if value == "" {
		value = "unknown"
	}
	return cwtypes.Dimension{Name: awsString(name), Value: awsString(value)}
}

func awsFloat(f float64) *float64 { return &f }

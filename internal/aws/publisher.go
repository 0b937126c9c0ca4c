package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/imrishuroy/go-listing-sync/internal/dispatch"
)

// Message attributes set on every failure queue message.
const (
	AttrTable       = "table"
	AttrOperation   = "operation"
	AttrFingerprint = "fingerprint"
	AttrFailed      = "failed"
)

// Publisher sends change events whose sync failed to the failure queue.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
}

// NewPublisher returns a Publisher bound to a queue URL.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
	}
}

// PublishFailure enqueues the raw event body for replay. The body is sent as
// received so the worker normalizes exactly what the webhook saw.
func (p *Publisher) PublishFailure(ctx context.Context, outcome dispatch.Outcome, body []byte) error {
	attrs := map[string]string{
		AttrTable:       outcome.Table,
		AttrOperation:   string(outcome.Operation),
		AttrFingerprint: string(outcome.Fingerprint),
		AttrFailed:      strings.Join(outcome.FailedTargets(), ","),
	}
	return p.send(ctx, string(body), attrs)
}

func (p *Publisher) send(ctx context.Context, messageBody string, attributes map[string]string) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: &messageBody,
	}
	msgAttrs := map[string]sqstypes.MessageAttributeValue{}
	for k, v := range attributes {
		// SQS rejects empty attribute values
		if v == "" {
			continue
		}
		msgAttrs[k] = sqstypes.MessageAttributeValue{
			DataType:    awsString("String"),
			StringValue: awsString(v),
		}
	}
	if len(msgAttrs) > 0 {
		input.MessageAttributes = msgAttrs
	}

	_, err := p.SQS.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }

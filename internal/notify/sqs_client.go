package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSNotifier puts one JSON message per scheduling event onto the delivery
// queue consumed by the messaging service.
type SQSNotifier struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSNotifier constructs an SQS-backed notifier.
func NewSQSNotifier(ctx context.Context, queueURL, region string) (*SQSNotifier, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("notify queue url is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SQSNotifier{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
	}, nil
}

func (s *SQSNotifier) OfferSent(ctx context.Context, event Event) error {
	return s.send(ctx, KindOfferSent, event)
}

func (s *SQSNotifier) SlotPicked(ctx context.Context, event Event) error {
	return s.send(ctx, KindSlotPicked, event)
}

func (s *SQSNotifier) Scheduled(ctx context.Context, event Event) error {
	return s.send(ctx, KindScheduled, event)
}

func (s *SQSNotifier) Cancelled(ctx context.Context, event Event) error {
	return s.send(ctx, KindCancelled, event)
}

func (s *SQSNotifier) send(ctx context.Context, kind Kind, event Event) error {
	event.Kind = kind
	payload, err := EncodeEvent(event)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
	})
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

var _ Notifier = (*SQSNotifier)(nil)

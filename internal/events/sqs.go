package events

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQS sends each event as one queue message.
type SQS struct {
	client   *sqs.Client
	queueURL string
}

// NewSQS loads the default AWS config chain. queueURL wins over queueName;
// with only a name the URL is resolved once here.
func NewSQS(ctx context.Context, queueURL, queueName string) (*SQS, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("events: aws config: %w", err)
	}

	client := sqs.New(sqs.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
	})

	if queueURL == "" {
		if queueName == "" {
			return nil, fmt.Errorf("events: sqs needs queue_url or queue_name")
		}
		resp, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(queueName)})
		if err != nil {
			return nil, fmt.Errorf("events: resolve queue %s: %w", queueName, err)
		}
		queueURL = aws.ToString(resp.QueueUrl)
	}

	return &SQS{client: client, queueURL: queueURL}, nil
}

func (s *SQS) Publish(ctx context.Context, e Event) error {
	b, err := e.Marshal()
	if err != nil {
		return err
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(b)),
	})
	return err
}

func (s *SQS) Close() error { return nil }

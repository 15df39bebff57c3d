package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SubmissionEvent 分区提交完成后发给下游（人工批改、成绩同步）的消息
type SubmissionEvent struct {
	AttemptID    string    `json:"attemptId"`
	UserID       string    `json:"userId"`
	QuizID       string    `json:"quizId"`
	OwnerID      string    `json:"ownerId"`
	Kind         string    `json:"kind"`
	Trigger      string    `json:"trigger"`
	Score        int       `json:"score"`
	Total        int       `json:"total"`
	Percentage   float64   `json:"percentage"`
	NeedsGrading bool      `json:"needsGrading"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

type SQSPublisher struct {
	client   *sqs.Client
	queueURL string
}

func NewSQSPublisher(ctx context.Context, region, queueName string) (*SQSPublisher, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := sqs.NewFromConfig(awsCfg)
	out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(queueName)})
	if err != nil {
		return nil, err
	}
	return &SQSPublisher{client: client, queueURL: aws.ToString(out.QueueUrl)}, nil
}

func (p *SQSPublisher) PublishSubmission(ctx context.Context, evt SubmissionEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(evt.Kind),
			},
		},
	})
	return err
}

package publisher

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSTransport publishes messages to an Amazon SNS topic using the AWS SDK.
type SNSTransport struct {
	client *sns.Client
}

// NewSNSTransport creates a transport backed by an sns.Client.
func NewSNSTransport(client *sns.Client) *SNSTransport {
	return &SNSTransport{client: client}
}

// Publish sends msg to topicARN and returns the assigned message id.
func (t *SNSTransport) Publish(ctx context.Context, topicARN string, msg Message) (MessageId, error) {
	input := &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Message:  aws.String(msg.Body),
	}
	if msg.GroupID != "" {
		input.MessageGroupId = aws.String(msg.GroupID)
	}
	if msg.DeduplicationID != "" {
		input.MessageDeduplicationId = aws.String(msg.DeduplicationID)
	}
	if len(msg.Attributes) > 0 {
		attrs := make(map[string]types.MessageAttributeValue, len(msg.Attributes))
		for k, v := range msg.Attributes {
			attrs[k] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
		input.MessageAttributes = attrs
	}

	out, err := t.client.Publish(ctx, input)
	if err != nil {
		return "", err
	}
	return MessageId(aws.ToString(out.MessageId)), nil
}

// DescribeTopic verifies the topic exists and is reachable.
func (t *SNSTransport) DescribeTopic(ctx context.Context, topicARN string) error {
	_, err := t.client.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{
		TopicArn: aws.String(topicARN),
	})
	return err
}

var _ Transport = (*SNSTransport)(nil)

package publishers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type fakeSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNSClient) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-123")}, nil
}

func TestSNSPublisherSuccess(t *testing.T) {
	client := &fakeSNSClient{}
	pub := &snsPublisher{
		id:       "topic",
		topicARN: "arn:aws:sns:::grades",
		client:   client,
		log:      noopLogger{},
	}

	err := pub.Publish(context.Background(), Event{ID: "e1", CourseID: "7", GitHub: "octocat", Status: "updated"})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if got := aws.ToString(client.input.TopicArn); got != "arn:aws:sns:::grades" {
		t.Fatalf("TopicArn = %s", got)
	}
	attr, ok := client.input.MessageAttributes["course_id"]
	if !ok || aws.ToString(attr.StringValue) != "7" {
		t.Fatalf("course_id attribute missing or wrong: %#v", attr)
	}
	if !strings.Contains(aws.ToString(client.input.Message), `"github":"octocat"`) {
		t.Fatalf("Message missing github: %s", aws.ToString(client.input.Message))
	}
}

func TestSNSPublisherError(t *testing.T) {
	pub := &snsPublisher{id: "topic", topicARN: "arn", client: &fakeSNSClient{err: errors.New("boom")}, log: noopLogger{}}
	if err := pub.Publish(context.Background(), Event{CourseID: "7"}); err == nil {
		t.Fatalf("expected error from Publish")
	}
}

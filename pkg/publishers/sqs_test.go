package publishers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSQSPublisherSendsAttributes(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{
		id:       "queue",
		queueURL: "https://sqs.local/123/grades",
		client:   client,
		log:      noopLogger{},
	}

	err := pub.Publish(context.Background(), Event{ID: "e1", CourseID: "1", LabID: "lab1", Status: "updated"})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://sqs.local/123/grades" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["course_id"]
	if !ok || aws.ToString(attr.StringValue) != "1" || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("course_id attribute missing or wrong: %#v", attr)
	}
	if _, ok := client.input.MessageAttributes["lab_id"]; !ok {
		t.Fatalf("lab_id attribute missing")
	}
	if !strings.Contains(aws.ToString(client.input.MessageBody), `"course_id":"1"`) {
		t.Fatalf("body missing course_id: %s", aws.ToString(client.input.MessageBody))
	}
}

func TestSQSPublisherSkipsEmptyAttributes(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{id: "queue", queueURL: "q", client: client, log: noopLogger{}}

	if err := pub.Publish(context.Background(), Event{CourseID: "1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(client.input.MessageAttributes) != 1 {
		t.Fatalf("expected only course_id attribute, got %#v", client.input.MessageAttributes)
	}
}

func TestSQSPublisherError(t *testing.T) {
	pub := &sqsPublisher{id: "queue", queueURL: "q", client: &fakeSQSClient{err: errors.New("boom")}, log: noopLogger{}}
	if err := pub.Publish(context.Background(), Event{CourseID: "1"}); err == nil {
		t.Fatalf("expected error from Publish")
	}
}

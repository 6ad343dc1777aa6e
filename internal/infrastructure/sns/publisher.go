package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// EventRegistrationConfirmed is the event_type attribute of confirmation events.
const EventRegistrationConfirmed = "registration.confirmed"

// RegistrationConfirmed is published after a code is consumed so downstream
// services can create the account. It never carries the credential.
type RegistrationConfirmed struct {
	RegistrationID string    `json:"registration_id"`
	Email          string    `json:"email"`
	Nickname       string    `json:"nickname"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
}

// Publisher announces registration lifecycle events.
type Publisher interface {
	PublishRegistrationConfirmed(ctx context.Context, ev RegistrationConfirmed) error
}

// API is the subset of the SNS client used here.
type API interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type publisher struct {
	api      API
	topicARN string
}

// NewClient creates an SNS client, honouring a LocalStack endpoint override.
func NewClient(awsCfg aws.Config, endpointURL string) *sns.Client {
	clientOpts := []func(*sns.Options){}
	if endpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
		})
	}
	return sns.NewFromConfig(awsCfg, clientOpts...)
}

func NewPublisher(api API, topicARN string) Publisher {
	return &publisher{api: api, topicARN: topicARN}
}

func (p *publisher) PublishRegistrationConfirmed(ctx context.Context, ev RegistrationConfirmed) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(EventRegistrationConfirmed)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// Noop discards events; used when no topic is configured.
type Noop struct{}

func (Noop) PublishRegistrationConfirmed(context.Context, RegistrationConfirmed) error { return nil }

package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"push-relay/internal/common/logger"
	"push-relay/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSAPI is the subset of the SNS client the gateway uses.
type SNSAPI interface {
	CreatePlatformEndpoint(ctx context.Context, params *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
	CreateTopic(ctx context.Context, params *sns.CreateTopicInput, optFns ...func(*sns.Options)) (*sns.CreateTopicOutput, error)
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
}

// SNSGateway delivers through AWS SNS mobile push. Device tokens are bound
// to the FCM platform application; CreatePlatformEndpoint and CreateTopic
// are idempotent, so they are called on every send.
type SNSGateway struct {
	client         SNSAPI
	platformAppARN string
	logger         logger.Logger
}

func NewSNSGateway(client SNSAPI, platformAppARN string, log logger.Logger) *SNSGateway {
	return &SNSGateway{client: client, platformAppARN: platformAppARN, logger: log}
}

func (g *SNSGateway) Send(ctx context.Context, msg *Message) (string, error) {
	body, err := envelope(msg)
	if err != nil {
		return "", err
	}

	input := &sns.PublishInput{
		Message:          aws.String(body),
		MessageStructure: aws.String("json"),
	}
	switch {
	case msg.Token != "":
		endpointARN, err := g.endpoint(ctx, msg.Token)
		if err != nil {
			return "", err
		}
		input.TargetArn = aws.String(endpointARN)
	case msg.Topic != "":
		topicARN, err := g.topic(ctx, msg.Topic)
		if err != nil {
			return "", err
		}
		input.TopicArn = aws.String(topicARN)
	default:
		return "", errors.New("message has neither token nor topic")
	}

	out, err := g.client.Publish(ctx, input)
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

func (g *SNSGateway) SendMulticast(ctx context.Context, tokens []string, msg *Message) (*models.BatchResponse, error) {
	resp := &models.BatchResponse{Responses: make([]models.SendResponse, 0, len(tokens))}
	for _, token := range tokens {
		single := *msg
		single.Token = token
		single.Topic = ""

		messageID, err := g.Send(ctx, &single)
		if err != nil {
			resp.FailureCount++
			resp.Responses = append(resp.Responses, models.SendResponse{Token: token, Error: err.Error()})
			continue
		}
		resp.SuccessCount++
		resp.Responses = append(resp.Responses, models.SendResponse{Token: token, Success: true, MessageID: messageID})
	}
	return resp, nil
}

func (g *SNSGateway) SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*models.TopicManagementResponse, error) {
	topicARN, err := g.topic(ctx, topic)
	if err != nil {
		return nil, err
	}

	resp := &models.TopicManagementResponse{Errors: []models.TopicError{}}
	for i, token := range tokens {
		if err := g.subscribe(ctx, topicARN, token); err != nil {
			resp.FailureCount++
			resp.Errors = append(resp.Errors, models.TopicError{Index: i, Token: token, Reason: err.Error()})
			continue
		}
		resp.SuccessCount++
	}
	return resp, nil
}

func (g *SNSGateway) subscribe(ctx context.Context, topicARN, token string) error {
	endpointARN, err := g.endpoint(ctx, token)
	if err != nil {
		return err
	}
	_, err = g.client.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn: aws.String(topicARN),
		Protocol: aws.String("application"),
		Endpoint: aws.String(endpointARN),
	})
	return err
}

func (g *SNSGateway) endpoint(ctx context.Context, token string) (string, error) {
	out, err := g.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(g.platformAppARN),
		Token:                  aws.String(token),
	})
	if err != nil {
		return "", fmt.Errorf("create platform endpoint: %w", err)
	}
	return aws.ToString(out.EndpointArn), nil
}

func (g *SNSGateway) topic(ctx context.Context, name string) (string, error) {
	out, err := g.client.CreateTopic(ctx, &sns.CreateTopicInput{Name: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("resolve topic %s: %w", name, err)
	}
	return aws.ToString(out.TopicArn), nil
}

// envelope builds the MessageStructure=json body. SNS expects the GCM value
// as a JSON-encoded string.
func envelope(msg *Message) (string, error) {
	priority := msg.Priority
	if priority == "" {
		priority = PriorityHigh
	}
	data := msg.Data
	if data == nil {
		data = map[string]string{}
	}

	gcm, err := json.Marshal(map[string]interface{}{
		"priority": priority,
		"data":     data,
	})
	if err != nil {
		return "", fmt.Errorf("encode gcm payload: %w", err)
	}

	fallback := data["message"]
	if fallback == "" {
		fallback = string(gcm)
	}

	body, err := json.Marshal(map[string]string{
		"default": fallback,
		"GCM":     string(gcm),
	})
	if err != nil {
		return "", fmt.Errorf("encode sns message: %w", err)
	}
	return string(body), nil
}

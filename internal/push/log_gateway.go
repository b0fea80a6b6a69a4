package push

import (
	"context"

	"push-relay/internal/common/logger"
	"push-relay/internal/models"

	"github.com/google/uuid"
)

// LogGateway only logs messages. It stands in for a real gateway in local
// development.
type LogGateway struct {
	logger logger.Logger
}

func NewLogGateway(log logger.Logger) *LogGateway {
	return &LogGateway{logger: log}
}

func (g *LogGateway) Send(ctx context.Context, msg *Message) (string, error) {
	id := "log-" + uuid.NewString()
	g.logger.Info("Push message (log gateway)", map[string]interface{}{
		"messageId": id,
		"topic":     msg.Topic,
		"hasToken":  msg.Token != "",
		"data":      msg.Data,
		"priority":  msg.Priority,
	})
	return id, nil
}

func (g *LogGateway) SendMulticast(ctx context.Context, tokens []string, msg *Message) (*models.BatchResponse, error) {
	resp := &models.BatchResponse{Responses: make([]models.SendResponse, 0, len(tokens))}
	for _, token := range tokens {
		single := *msg
		single.Token = token
		id, _ := g.Send(ctx, &single)
		resp.Responses = append(resp.Responses, models.SendResponse{Token: token, Success: true, MessageID: id})
		resp.SuccessCount++
	}
	return resp, nil
}

func (g *LogGateway) SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*models.TopicManagementResponse, error) {
	g.logger.Info("Topic subscription (log gateway)", map[string]interface{}{
		"topic":  topic,
		"tokens": len(tokens),
	})
	return &models.TopicManagementResponse{SuccessCount: len(tokens), Errors: []models.TopicError{}}, nil
}

package services

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// InitFirebase initializes the Firebase Admin SDK and returns a Cloud Messaging client
func InitFirebase(ctx context.Context, credPath string) (*messaging.Client, error) {
	opt := option.WithCredentialsFile(credPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, err
	}
	return app.Messaging(ctx)
}

// PushService sends payment updates to the student app. Apps subscribe to the
// topic of the transaction they just initiated.
type PushService struct {
	client *messaging.Client
}

func NewPushService(client *messaging.Client) *PushService {
	return &PushService{client: client}
}

func (s *PushService) Enabled() bool {
	return s != nil && s.client != nil
}

// PaymentTopic is the FCM topic for one transaction
func PaymentTopic(transactionID string) string {
	return "payment_" + topicSafe(transactionID)
}

// SendToTopic delivers a notification with data fields and returns the message id
func (s *PushService) SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("firebase messaging not configured")
	}
	return s.client.Send(ctx, &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	})
}

// topicSafe keeps the characters FCM accepts in topic names: [a-zA-Z0-9-_.~%]
func topicSafe(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		case r == '-' || r == '_' || r == '.' || r == '~' || r == '%':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

package dispatch

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/example/party-rides/internal/notify"
)

// MessageSender is the part of the firebase messaging client we use.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier pushes envelopes to the per-user topic the mobile app
// subscribes to after sign-in.
type FCMNotifier struct {
	client MessageSender
}

func NewFCMNotifier(ctx context.Context, credentialsFile string) (*FCMNotifier, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}
	return &FCMNotifier{client: client}, nil
}

func NewFCMNotifierWithSender(s MessageSender) *FCMNotifier { return &FCMNotifier{client: s} }

func UserTopic(userID string) string { return "user-" + userID }

func (f *FCMNotifier) Notify(ctx context.Context, env notify.Envelope) error {
	if _, err := f.client.Send(ctx, buildMessage(env)); err != nil {
		return fmt.Errorf("fcm send to %s: %w", env.UserID, err)
	}
	return nil
}

func buildMessage(env notify.Envelope) *messaging.Message {
	data := make(map[string]string, len(env.Metadata)+2)
	for k, v := range env.Metadata {
		data[k] = v
	}
	data["reason"] = string(env.Reason)
	if env.DeepLink != "" {
		data["deep_link"] = env.DeepLink
	}
	return &messaging.Message{
		Topic: UserTopic(env.UserID),
		Data:  data,
		Notification: &messaging.Notification{
			Title: env.Title,
			Body:  env.Body,
		},
	}
}

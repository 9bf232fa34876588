package backend

import (
	"context"
	"fmt"

	"lingo-core/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
)

const previewLength = 120

// Notifier delivers push notifications for new direct messages
type Notifier interface {
	NotifyDirectMessage(ctx context.Context, deviceToken, senderName string, message models.DirectMessage) error
}

// NoopNotifier drops every notification
type NoopNotifier struct{}

// NotifyDirectMessage does nothing
func (NoopNotifier) NotifyDirectMessage(ctx context.Context, deviceToken, senderName string, message models.DirectMessage) error {
	return nil
}

// APNsNotifier pushes to iOS devices
type APNsNotifier struct {
	client *apns2.Client
	topic  string
}

// NewAPNsNotifier loads the p12 certificate and creates an APNs client
func NewAPNsNotifier(certFile, password, topic string, production bool) (*APNsNotifier, error) {
	cert, err := certificate.FromP12File(certFile, password)
	if err != nil {
		return nil, fmt.Errorf("failed to load apns certificate: %w", err)
	}

	client := apns2.NewClient(cert)
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNsNotifier{client: client, topic: topic}, nil
}

// NotifyDirectMessage pushes a message preview to the receiver's device
func (n *APNsNotifier) NotifyDirectMessage(ctx context.Context, deviceToken, senderName string, message models.DirectMessage) error {
	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       n.topic,
		Payload: payload.NewPayload().
			AlertTitle(senderName).
			AlertBody(preview(message.Content)).
			Sound("default").
			ThreadID(message.SenderID).
			Custom("message_id", message.ID),
	}

	res, err := n.client.PushWithContext(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("apns rejected notification: %d %s", res.StatusCode, res.Reason)
	}

	log.Debug().
		Str("receiver_id", message.ReceiverID).
		Str("apns_id", res.ApnsID).
		Msg("Direct message push sent")

	return nil
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength-1]) + "…"
}

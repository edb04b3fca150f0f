// Package push delivers web push notifications to the departments an
// alert concerns.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"workflow-portal-go/internal/config"
	"workflow-portal-go/internal/metrics"
	"workflow-portal-go/internal/models"
	"workflow-portal-go/internal/store"
)

// Message is the JSON payload the service worker receives.
type Message struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	URL     string `json:"url"`
	AlertID string `json:"alertId"`
}

type Notifier struct {
	subs       *store.PushStore
	publicKey  string
	privateKey string
	subscriber string
	client     webpush.HTTPClient
	timeout    time.Duration
	log        *zap.Logger
	metrics    *metrics.Metrics
}

type Option func(*Notifier)

func WithLogger(log *zap.Logger) Option {
	return func(n *Notifier) {
		if log != nil {
			n.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

// WithHTTPClient replaces the client used to reach push services.
func WithHTTPClient(c webpush.HTTPClient) Option {
	return func(n *Notifier) { n.client = c }
}

// New builds a notifier. Without configured VAPID keys a fresh pair is
// generated; subscriptions made against it stop working after a restart.
func New(cfg config.PushConfig, subs *store.PushStore, opts ...Option) (*Notifier, error) {
	n := &Notifier{
		subs:       subs,
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subscriber: cfg.Subscriber,
		timeout:    10 * time.Second,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}

	if !cfg.Enabled() {
		privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			return nil, fmt.Errorf("generate VAPID keys: %w", err)
		}
		n.privateKey, n.publicKey = privateKey, publicKey
		n.log.Warn("VAPID keys not found in environment, generated new keys (add them to .env to persist)",
			zap.String("VAPID_PUBLIC_KEY", publicKey),
			zap.String("VAPID_PRIVATE_KEY", privateKey),
		)
	}
	return n, nil
}

// PublicKey is the application server key clients subscribe with.
func (n *Notifier) PublicKey() string { return n.publicKey }

func (n *Notifier) Subscribe(ctx context.Context, departmentID, endpoint, p256dh, auth string) (models.PushSubscription, error) {
	return n.subs.SavePushSubscription(ctx, departmentID, endpoint, p256dh, auth)
}

func (n *Notifier) Unsubscribe(ctx context.Context, endpoint string) error {
	return n.subs.DeletePushSubscription(ctx, endpoint)
}

// AlertCreated notifies every recipient department.
func (n *Notifier) AlertCreated(ctx context.Context, alert models.Alert) {
	n.send(ctx, Message{
		Title:   alert.Title,
		Body:    alert.Description,
		URL:     "/alerts/" + alert.ID,
		AlertID: alert.ID,
	}, alert.ToDepartments...)
}

// ResponseAdded notifies the sending department, unless it answered itself.
func (n *Notifier) ResponseAdded(ctx context.Context, alert models.Alert, resp models.AlertResponse) {
	if resp.FromDepartment == alert.FromDepartment {
		return
	}
	n.send(ctx, Message{
		Title:   "Nova resposta em " + alert.Title,
		Body:    resp.Responsible + ": " + resp.Message,
		URL:     "/alerts/" + alert.ID,
		AlertID: alert.ID,
	}, alert.FromDepartment)
}

func (n *Notifier) send(ctx context.Context, msg Message, departments ...string) {
	subs := n.subs.GetPushSubscriptions(departments...)
	if len(subs) == 0 {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		n.log.Error("Failed to encode push message", zap.Error(err))
		return
	}
	for _, sub := range subs {
		err := n.deliver(ctx, payload, sub)
		n.metrics.PushDelivered(err)
		if err != nil {
			n.log.Warn("Failed to send push",
				zap.String("department", sub.DepartmentID),
				zap.String("endpoint", sub.Endpoint),
				zap.Error(err))
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, payload []byte, sub models.PushSubscription) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}
	resp, err := webpush.SendNotificationWithContext(ctx, payload, s, &webpush.Options{
		HTTPClient:      n.client,
		Subscriber:      n.subscriber,
		VAPIDPublicKey:  n.publicKey,
		VAPIDPrivateKey: n.privateKey,
		TTL:             30,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// the browser dropped the subscription
		if err := n.subs.DeletePushSubscription(context.WithoutCancel(ctx), sub.Endpoint); err != nil {
			n.log.Warn("Failed to remove expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
		return fmt.Errorf("subscription expired: %s", resp.Status)
	case resp.StatusCode >= 300:
		return fmt.Errorf("push service answered %s", resp.Status)
	}
	return nil
}

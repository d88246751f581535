// Package notify tells users about features they unlocked.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"firebase.google.com/go/v4/messaging"
	"github.com/castlemilk/pointsledger/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Sender delivers one FCM message. *messaging.Client implements it.
type Sender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// PushNotifier sends an FCM push for every batch of unlocked features.
type PushNotifier struct {
	sender  Sender
	printer *message.Printer
	caser   cases.Caser
	link    string
	log     *slog.Logger
}

// NewPushNotifier creates a notifier rendering text for tag. link is opened
// when the notification is clicked; it may be empty.
func NewPushNotifier(sender Sender, tag language.Tag, link string) *PushNotifier {
	return &PushNotifier{
		sender:  sender,
		printer: message.NewPrinter(tag),
		caser:   cases.Title(tag),
		link:    link,
		log:     slog.Default().With("component", "push"),
	}
}

// NotifyUnlocks pushes a message to the user's registered device. Users
// without a push token are skipped.
func (p *PushNotifier) NotifyUnlocks(ctx context.Context, user *model.UserState, unlocked []model.Feature) error {
	if user == nil || user.PushToken == "" || len(unlocked) == 0 {
		return nil
	}

	title, body := p.Render(user.Points, unlocked)
	msg := &messaging.Message{
		Token: user.PushToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"type":     "feature_unlocked",
			"features": joinFeatures(unlocked),
		},
	}
	if p.link != "" {
		msg.Webpush = &messaging.WebpushConfig{
			FCMOptions: &messaging.WebpushFCMOptions{Link: p.link},
		}
	}

	if _, err := p.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send unlock push to user %s: %w", user.UserID, err)
	}
	p.log.Info("sent unlock push", "user_id", user.UserID, "features", len(unlocked))
	return nil
}

// Render returns the notification title and body.
func (p *PushNotifier) Render(points int64, unlocked []model.Feature) (string, string) {
	names := make([]string, 0, len(unlocked))
	for _, f := range unlocked {
		names = append(names, p.Label(f))
	}

	title := "New feature unlocked"
	if len(unlocked) > 1 {
		title = p.printer.Sprintf("%d features unlocked", len(unlocked))
	}
	body := p.printer.Sprintf("You have %d points. Now available: %s.", points, strings.Join(names, ", "))
	return title, body
}

// Label turns a feature flag into display text: premiumCategories becomes
// "Premium Categories".
func (p *PushNotifier) Label(f model.Feature) string {
	var words []string
	var cur []rune
	for _, r := range string(f) {
		if unicode.IsUpper(r) && len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}
	return p.caser.String(strings.Join(words, " "))
}

func joinFeatures(fs []model.Feature) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

// LogNotifier records unlocks in the log. It is used when push delivery is
// disabled.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a LogNotifier writing to logger, or to the default
// logger when nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{log: logger.With("component", "notify")}
}

func (n *LogNotifier) NotifyUnlocks(_ context.Context, user *model.UserState, unlocked []model.Feature) error {
	if user == nil {
		return nil
	}
	n.log.Info("features unlocked", "user_id", user.UserID, "points", user.Points, "features", joinFeatures(unlocked))
	return nil
}

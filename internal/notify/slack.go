package notify

import (
	"fmt"
	"log"
	"sync"

	"github.com/driveguard/driveguard/internal/database"
	"github.com/driveguard/driveguard/internal/feed"
	"github.com/driveguard/driveguard/internal/services"
	"github.com/driveguard/driveguard/internal/utils"
	"github.com/slack-go/slack"
)

const maxSlackMessageLength = 2000

// SlackNotifier forwards critical alerts to a Slack channel with
// hot-reload support. Settings live in the database and can change at
// runtime; Reload picks them up without restarting the subscription.
type SlackNotifier struct {
	mu sync.RWMutex

	client  *slack.Client
	channel string
	active  bool

	alerts *services.AlertService
	unsub  feed.Unsubscribe

	// post sends a message to a channel. Overridable in tests.
	post func(channel, message string) error
}

// NewSlackNotifier creates a notifier bound to the alert feed
func NewSlackNotifier(alerts *services.AlertService) *SlackNotifier {
	n := &SlackNotifier{alerts: alerts}
	n.post = n.postMessage
	return n
}

// Reload re-reads Slack settings from the database and rebuilds the client.
// Safe to call at any time, including while the notifier is running.
func (n *SlackNotifier) Reload() {
	settings, err := database.GetSlackSettings()
	if err != nil {
		log.Printf("SlackNotifier: Could not load Slack settings: %v", err)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if !settings.IsActive() {
		n.client = nil
		n.channel = ""
		n.active = false
		log.Printf("SlackNotifier: Slack is disabled (not configured or not enabled)")
		return
	}

	n.client = slack.New(settings.BotToken, slack.OptionDebug(false))
	n.channel = settings.AlertsChannel
	n.active = true
	log.Printf("SlackNotifier: Posting critical alerts to %s", settings.AlertsChannel)
}

// IsActive returns true if the notifier is configured and enabled
func (n *SlackNotifier) IsActive() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.active
}

// Start loads settings and subscribes to the alert feed. Alerts below
// critical priority are ignored. A disabled configuration is not an
// error; the subscription stays live and Reload can activate it later.
func (n *SlackNotifier) Start() error {
	n.Reload()

	unsub, err := n.alerts.Subscribe(n.handleAlert, func(err error) {
		log.Printf("SlackNotifier: Alert feed error: %v", err)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to alert feed: %w", err)
	}

	n.mu.Lock()
	n.unsub = unsub
	n.mu.Unlock()
	return nil
}

// Stop unsubscribes from the alert feed
func (n *SlackNotifier) Stop() {
	n.mu.Lock()
	unsub := n.unsub
	n.unsub = nil
	n.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (n *SlackNotifier) handleAlert(alert database.Alert) {
	if alert.Priority != database.AlertPriorityCritical {
		return
	}

	n.mu.RLock()
	active := n.active
	channel := n.channel
	n.mu.RUnlock()

	if !active {
		return
	}

	if err := n.post(channel, formatAlertMessage(alert)); err != nil {
		log.Printf("SlackNotifier: Failed to post alert %s: %v", alert.AlertID, err)
		return
	}
	log.Printf("SlackNotifier: Posted critical alert %s for driver %s", alert.AlertID, alert.DriverID)
}

func (n *SlackNotifier) postMessage(channel, message string) error {
	n.mu.RLock()
	client := n.client
	n.mu.RUnlock()

	if client == nil {
		return fmt.Errorf("slack client not configured")
	}

	_, _, err := client.PostMessage(
		channel,
		slack.MsgOptionText(message, false),
	)
	return err
}

func formatAlertMessage(alert database.Alert) string {
	driver := alert.DriverName
	if driver == "" {
		driver = alert.DriverID
	}

	message := fmt.Sprintf(`:rotating_light: *Critical Alert: %s*

:bust_in_silhouette: *Driver:* %s (%s)
:warning: *Priority:* %s
:memo: *Details:* %s`,
		alert.AlertID,
		driver,
		alert.DriverID,
		alert.Priority,
		utils.TruncateText(alert.Message, maxSlackMessageLength),
	)

	if alert.EventID != "" {
		message += fmt.Sprintf("\n:link: *Event:* %s", alert.EventID)
	}

	return message
}

// Package notify formats opportunity digests and delivers them to a webhook.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/fundarb/internal/quote"
	"github.com/wonny/fundarb/pkg/config"
	"github.com/wonny/fundarb/pkg/logger"
)

// DefaultMaxItems caps the quotes listed per category
const DefaultMaxItems = 5

// Sender delivers one text message
type Sender interface {
	Send(ctx context.Context, text string) error
	Name() string
}

// Notifier turns an OpportunitySet into one digest message
// ⭐ SSOT: 알림 메시지 포맷은 이 패키지에서만
type Notifier struct {
	sender   Sender // nil when no webhook is configured
	maxItems int
	logger   *logger.Logger
}

// New creates a Notifier backed by the Feishu webhook in cfg.
// An empty webhook URL is allowed: Notify then only logs.
func New(cfg config.NotifyConfig, log *logger.Logger) *Notifier {
	var sender Sender
	if cfg.WebhookURL != "" {
		sender = NewFeishuSender(cfg.WebhookURL, cfg.Timeout, log)
	} else {
		log.WithComponent("notify").Warn("FEISHU_BOT_HOOK_URL not configured, notifications disabled")
	}
	return NewWithSender(sender, cfg.MaxItems, log)
}

// NewWithSender creates a Notifier around an arbitrary sender (nil disables delivery)
func NewWithSender(sender Sender, maxItems int, log *logger.Logger) *Notifier {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Notifier{
		sender:   sender,
		maxItems: maxItems,
		logger:   log.WithComponent("notify"),
	}
}

// Enabled reports whether a webhook is configured
func (n *Notifier) Enabled() bool {
	return n.sender != nil
}

// Notify sends one digest for every non-empty category in set. It returns
// sent=false without error when nothing qualifies or no webhook is configured.
// Delivery failures are logged, returned, and never retried.
func (n *Notifier) Notify(ctx context.Context, set quote.OpportunitySet) (bool, error) {
	if set.Empty() {
		n.logger.Info("No opportunities found, nothing to send")
		return false, nil
	}

	if n.sender == nil {
		n.logger.WithField("opportunities", set.Total()).Warn("Webhook not configured, skipping notification")
		return false, nil
	}

	at := set.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}

	if err := n.sender.Send(ctx, Format(set, at, n.maxItems)); err != nil {
		n.logger.WithError(err).WithField("sender", n.sender.Name()).Error("Failed to send notification")
		return false, err
	}

	n.logger.WithFields(map[string]interface{}{
		"sender":        n.sender.Name(),
		"opportunities": set.Total(),
		"run_id":        set.RunID,
	}).Info("Notification sent")
	return true, nil
}

// Format renders the digest text:
//
//	💰 基金高溢价套利提醒 (14:00)
//	--------------------
//	📈 【LOF指数】发现 7 个机会:
//	- 标普500 (160922): 溢价 12.5%
//	...等
//
// Empty categories are omitted; at most maxItems quotes are listed per category.
func Format(set quote.OpportunitySet, at time.Time, maxItems int) string {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💰 基金高溢价套利提醒 (%s)\n", at.Format("15:04"))
	b.WriteString("--------------------\n")

	for _, c := range set.Categories {
		if len(c.Quotes) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s发现 %d 个机会:\n", c.Title, len(c.Quotes))

		for i, q := range c.Quotes {
			if i == maxItems {
				b.WriteString("...等\n")
				break
			}
			fmt.Fprintf(&b, "- %s (%s): 溢价 %s%%\n", q.Name, q.Code, strconv.FormatFloat(q.PremiumRate, 'f', -1, 64))
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

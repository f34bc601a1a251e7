package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/fundarb/pkg/httputil"
	"github.com/wonny/fundarb/pkg/logger"
)

// FeishuSender delivers text messages to a Feishu (Lark) bot webhook
type FeishuSender struct {
	webhookURL string
	httpClient *httputil.Client
}

type feishuText struct {
	Text string `json:"text"`
}

type feishuMessage struct {
	MsgType string     `json:"msg_type"`
	Content feishuText `json:"content"`
}

// NewFeishuSender creates a sender for webhookURL
func NewFeishuSender(webhookURL string, timeout time.Duration, log *logger.Logger) *FeishuSender {
	return &FeishuSender{
		webhookURL: webhookURL,
		httpClient: httputil.New(log, timeout),
	}
}

// Send posts {"msg_type":"text","content":{"text":...}}; any non-2xx status is an error
func (f *FeishuSender) Send(ctx context.Context, text string) error {
	resp, err := f.httpClient.PostJSON(ctx, f.webhookURL, feishuMessage{
		MsgType: "text",
		Content: feishuText{Text: text},
	})
	if err != nil {
		return fmt.Errorf("feishu: send request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp); err != nil {
		return fmt.Errorf("feishu: %w", err)
	}
	return nil
}

// Name returns the sender identifier
func (f *FeishuSender) Name() string {
	return "feishu"
}

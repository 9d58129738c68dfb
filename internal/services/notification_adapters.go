package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/teamforge/teamforge/pkg/logger"
)

// webhookSender delivers a plain text message to one IM platform. Each
// implementation handles the payload format and signing scheme of its
// platform.
type webhookSender interface {
	SendText(webhook, secret, message string) error
}

// webhookSenderFor returns the sender matching the configured platform type
func webhookSenderFor(platform string) webhookSender {
	switch platform {
	case "wechat_work":
		return &wecomSender{}
	case "dingtalk":
		return &dingtalkSender{}
	case "feishu":
		return &feishuSender{}
	case "slack":
		return &slackSender{}
	default:
		return &genericSender{}
	}
}

var notificationHTTPClient = &http.Client{Timeout: 10 * time.Second}

func postJSON(webhookURL string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	logger.Infof("[Notification] POST %s, payload length: %d", webhookURL, len(body))

	req, err := http.NewRequest("POST", webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := notificationHTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	logger.Infof("[Notification] Response: %d - %s", resp.StatusCode, string(respBody))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// splitMessage splits a long message into chunks, trying to break at newlines
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var parts []string
	remaining := msg

	for len(remaining) > 0 {
		if len(remaining) <= maxLen {
			parts = append(parts, remaining)
			break
		}

		chunk := remaining[:maxLen]
		breakPoint := maxLen

		for i := len(chunk) - 1; i > maxLen/2; i-- {
			if chunk[i] == '\n' {
				breakPoint = i + 1
				break
			}
		}

		parts = append(parts, remaining[:breakPoint])
		remaining = remaining[breakPoint:]
	}

	return parts
}

func dingTalkSign(timestamp int64, secret string) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, secret)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func feishuSign(timestamp int64, secret string) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, secret)
	h := hmac.New(sha256.New, []byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func dingTalkWebhookURL(webhook, secret string) string {
	if secret == "" {
		return webhook
	}
	timestamp := time.Now().UnixMilli()
	sign := dingTalkSign(timestamp, secret)
	return fmt.Sprintf("%s&timestamp=%d&sign=%s", webhook, timestamp, url.QueryEscape(sign))
}

// wecomSender handles WeCom (Enterprise WeChat) bot webhooks
type wecomSender struct{}

func (a *wecomSender) SendText(webhook, secret, message string) error {
	const maxLen = 4000

	parts := splitMessage(message, maxLen)
	for i, part := range parts {
		content := part
		if len(parts) > 1 {
			content = fmt.Sprintf("**[%d/%d]**\n\n%s", i+1, len(parts), part)
		}
		payload := map[string]interface{}{
			"msgtype": "markdown",
			"markdown": map[string]string{
				"content": content,
			},
		}
		if err := postJSON(webhook, payload); err != nil {
			return err
		}
	}
	return nil
}

// dingtalkSender handles DingTalk bot webhooks
type dingtalkSender struct{}

func (a *dingtalkSender) SendText(webhook, secret, message string) error {
	const maxLen = 19000

	webhookURL := dingTalkWebhookURL(webhook, secret)

	parts := splitMessage(message, maxLen)
	for i, part := range parts {
		title := "Team Update"
		if len(parts) > 1 {
			title = fmt.Sprintf("Team Update [%d/%d]", i+1, len(parts))
		}
		payload := map[string]interface{}{
			"msgtype": "markdown",
			"markdown": map[string]string{
				"title": title,
				"text":  part,
			},
		}
		if err := postJSON(webhookURL, payload); err != nil {
			return err
		}
	}
	return nil
}

// feishuSender handles Feishu (Lark) bot webhooks
type feishuSender struct{}

func (a *feishuSender) SendText(webhook, secret, message string) error {
	const maxLen = 4000

	sendPart := func(content string) error {
		if secret != "" {
			timestamp := time.Now().Unix()
			sign := feishuSign(timestamp, secret)
			payload := map[string]interface{}{
				"timestamp": fmt.Sprintf("%d", timestamp),
				"sign":      sign,
				"msg_type":  "text",
				"content": map[string]string{
					"text": content,
				},
			}
			return postJSON(webhook, payload)
		}
		payload := map[string]interface{}{
			"msg_type": "text",
			"content": map[string]string{
				"text": content,
			},
		}
		return postJSON(webhook, payload)
	}

	parts := splitMessage(message, maxLen)
	for i, part := range parts {
		content := part
		if len(parts) > 1 {
			content = fmt.Sprintf("[%d/%d]\n\n%s", i+1, len(parts), part)
		}
		if err := sendPart(content); err != nil {
			return err
		}
	}
	return nil
}

// slackSender handles Slack incoming webhooks
type slackSender struct{}

func (a *slackSender) SendText(webhook, secret, message string) error {
	const maxLen = 3000

	parts := splitMessage(message, maxLen)
	for i, part := range parts {
		text := part
		if len(parts) > 1 {
			text = fmt.Sprintf("*[%d/%d]*\n%s", i+1, len(parts), part)
		}
		payload := map[string]interface{}{
			"text": text,
			"blocks": []map[string]interface{}{
				{
					"type": "section",
					"text": map[string]string{
						"type": "mrkdwn",
						"text": text,
					},
				},
			},
		}
		if err := postJSON(webhook, payload); err != nil {
			return err
		}
	}
	return nil
}

// genericSender posts a bare JSON payload for self-hosted receivers
type genericSender struct{}

func (a *genericSender) SendText(webhook, secret, message string) error {
	payload := map[string]interface{}{
		"type":    "notification",
		"message": message,
	}
	return postJSON(webhook, payload)
}

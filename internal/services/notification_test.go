package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/teamforge/teamforge/internal/config"
	"github.com/teamforge/teamforge/pkg/response"
)

func newTestNotificationService(t *testing.T) (*NotificationService, *NotificationStream) {
	t.Helper()
	db := newTestDB(t)
	stream := NewNotificationStream()
	svc := NewNotificationService(db, &config.NotifierConfig{Enabled: false}, stream)
	return svc, stream
}

func TestNotificationService_Deliver(t *testing.T) {
	svc, stream := newTestNotificationService(t)

	_, ch, cancel := stream.Subscribe(5)
	defer cancel()

	err := svc.Deliver(context.Background(), &NotifyTask{UserID: 5, Message: "task assigned"})
	if err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}

	// Durable row written.
	count, err := svc.UnreadCount(5)
	if err != nil {
		t.Fatalf("UnreadCount() error: %v", err)
	}
	if count != 1 {
		t.Errorf("unread count = %d, expected 1", count)
	}

	// Live push delivered.
	select {
	case n := <-ch:
		if n.Message != "task assigned" {
			t.Errorf("Message = %q", n.Message)
		}
		if n.Read {
			t.Error("fresh notification should be unread")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timed out waiting for stream push")
	}
}

func TestNotificationService_ListForUser(t *testing.T) {
	svc, _ := newTestNotificationService(t)
	ctx := context.Background()

	for _, msg := range []string{"first", "second", "third"} {
		if err := svc.Deliver(ctx, &NotifyTask{UserID: 1, Message: msg}); err != nil {
			t.Fatalf("Deliver() error: %v", err)
		}
	}
	if err := svc.Deliver(ctx, &NotifyTask{UserID: 2, Message: "other user"}); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}

	resp, err := svc.ListForUser(1, &NotificationListRequest{})
	if err != nil {
		t.Fatalf("ListForUser() error: %v", err)
	}
	if resp.Total != 3 {
		t.Errorf("Total = %d, expected 3", resp.Total)
	}
	if resp.Unread != 3 {
		t.Errorf("Unread = %d, expected 3", resp.Unread)
	}
	for _, item := range resp.Items {
		if item.UserID != 1 {
			t.Errorf("listing leaked notification of user %d", item.UserID)
		}
	}
}

func TestNotificationService_MarkRead(t *testing.T) {
	svc, _ := newTestNotificationService(t)
	ctx := context.Background()

	if err := svc.Deliver(ctx, &NotifyTask{UserID: 1, Message: "unread"}); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}

	resp, err := svc.ListForUser(1, &NotificationListRequest{})
	if err != nil {
		t.Fatalf("ListForUser() error: %v", err)
	}
	id := resp.Items[0].ID

	if err := svc.MarkRead(1, id); err != nil {
		t.Fatalf("MarkRead() error: %v", err)
	}

	count, _ := svc.UnreadCount(1)
	if count != 0 {
		t.Errorf("unread count = %d, expected 0", count)
	}

	// Idempotent.
	if err := svc.MarkRead(1, id); err != nil {
		t.Errorf("second MarkRead() should be a no-op, got %v", err)
	}

	// Another user cannot touch the row.
	err = svc.MarkRead(2, id)
	if !response.IsNotFound(err) {
		t.Errorf("foreign MarkRead() should yield not found, got %v", err)
	}
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	svc, _ := newTestNotificationService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Deliver(ctx, &NotifyTask{UserID: 1, Message: "bulk"}); err != nil {
			t.Fatalf("Deliver() error: %v", err)
		}
	}

	affected, err := svc.MarkAllRead(1)
	if err != nil {
		t.Fatalf("MarkAllRead() error: %v", err)
	}
	if affected != 3 {
		t.Errorf("affected = %d, expected 3", affected)
	}

	count, _ := svc.UnreadCount(1)
	if count != 0 {
		t.Errorf("unread count = %d, expected 0", count)
	}

	affected, err = svc.MarkAllRead(1)
	if err != nil {
		t.Fatalf("MarkAllRead() error: %v", err)
	}
	if affected != 0 {
		t.Errorf("second pass affected = %d, expected 0", affected)
	}
}

func TestNotificationService_UnreadOnlyFilter(t *testing.T) {
	svc, _ := newTestNotificationService(t)
	ctx := context.Background()

	if err := svc.Deliver(ctx, &NotifyTask{UserID: 1, Message: "a"}); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if err := svc.Deliver(ctx, &NotifyTask{UserID: 1, Message: "b"}); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}

	resp, err := svc.ListForUser(1, &NotificationListRequest{})
	if err != nil {
		t.Fatalf("ListForUser() error: %v", err)
	}
	if err := svc.MarkRead(1, resp.Items[0].ID); err != nil {
		t.Fatalf("MarkRead() error: %v", err)
	}

	resp, err = svc.ListForUser(1, &NotificationListRequest{UnreadOnly: true})
	if err != nil {
		t.Fatalf("ListForUser(UnreadOnly) error: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("unread-only Total = %d, expected 1", resp.Total)
	}
	if len(resp.Items) != 1 || resp.Items[0].Read {
		t.Error("unread-only listing should carry only the unread row")
	}
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		maxLen   int
		expected int
	}{
		{"short message", "hello", 100, 1},
		{"exact length", strings.Repeat("a", 100), 100, 1},
		{"needs split", strings.Repeat("a", 150), 100, 2},
		{"three chunks", strings.Repeat("a", 250), 100, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := splitMessage(tt.msg, tt.maxLen)
			if len(parts) != tt.expected {
				t.Errorf("splitMessage() returned %d parts, expected %d", len(parts), tt.expected)
			}

			var joined string
			for _, p := range parts {
				if len(p) > tt.maxLen {
					t.Errorf("part length %d exceeds max %d", len(p), tt.maxLen)
				}
				joined += p
			}
			if joined != tt.msg {
				t.Error("joined parts should reconstruct the original message")
			}
		})
	}
}

func TestSplitMessage_PrefersNewlineBreaks(t *testing.T) {
	msg := strings.Repeat("x", 80) + "\n" + strings.Repeat("y", 80)
	parts := splitMessage(msg, 100)

	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if !strings.HasSuffix(parts[0], "\n") {
		t.Error("first part should break at the newline")
	}
	if strings.Contains(parts[1], "x") {
		t.Error("second part should only carry the second line")
	}
}

func TestDingTalkSign_Deterministic(t *testing.T) {
	a := dingTalkSign(1700000000000, "secret")
	b := dingTalkSign(1700000000000, "secret")
	if a != b {
		t.Error("same inputs should produce the same signature")
	}
	if a == "" {
		t.Error("signature should not be empty")
	}

	c := dingTalkSign(1700000000001, "secret")
	if a == c {
		t.Error("different timestamps should produce different signatures")
	}
}

func TestFeishuSign_Deterministic(t *testing.T) {
	a := feishuSign(1700000000, "secret")
	b := feishuSign(1700000000, "secret")
	if a != b {
		t.Error("same inputs should produce the same signature")
	}

	c := feishuSign(1700000000, "other")
	if a == c {
		t.Error("different secrets should produce different signatures")
	}
}

func TestDingTalkWebhookURL(t *testing.T) {
	base := "https://oapi.dingtalk.com/robot/send?access_token=tok"

	if got := dingTalkWebhookURL(base, ""); got != base {
		t.Errorf("no secret should leave the URL unchanged, got %q", got)
	}

	signed := dingTalkWebhookURL(base, "secret")
	if !strings.HasPrefix(signed, base+"&timestamp=") {
		t.Errorf("signed URL should append timestamp, got %q", signed)
	}
	if !strings.Contains(signed, "&sign=") {
		t.Errorf("signed URL should append signature, got %q", signed)
	}
}

func TestWebhookSenderFor(t *testing.T) {
	for _, platform := range []string{"wechat_work", "dingtalk", "feishu", "slack", "", "unknown"} {
		sender := webhookSenderFor(platform)
		if sender == nil {
			t.Fatalf("webhookSenderFor(%q) should never return nil", platform)
		}
	}

	if _, ok := webhookSenderFor("slack").(*slackSender); !ok {
		t.Error("slack platform should map to the slack sender")
	}
	if _, ok := webhookSenderFor("unknown").(*genericSender); !ok {
		t.Error("unknown platform should fall back to the generic sender")
	}
}

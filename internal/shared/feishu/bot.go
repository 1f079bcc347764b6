package feishu

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// BotClient posts messages to a Feishu custom bot webhook
type BotClient struct {
	webhookURL string
	secret     string // optional signing secret
	httpClient *http.Client
}

// NewBotClient creates a bot client. secret may be empty when the bot has
// no signature check configured.
func NewBotClient(webhookURL, secret string, timeout time.Duration) *BotClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BotClient{
		webhookURL: webhookURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SendCard posts an interactive card
func (c *BotClient) SendCard(ctx context.Context, card InteractiveCard) error {
	msg := botMessage{MsgType: "interactive", Card: card}
	if c.secret != "" {
		ts := time.Now().Unix()
		msg.Timestamp = strconv.FormatInt(ts, 10)
		msg.Sign = sign(ts, c.secret)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feishu webhook http %d: %s", resp.StatusCode, string(respBody))
	}
	var base BaseResponse
	if err := json.Unmarshal(respBody, &base); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if base.Code != 0 {
		return fmt.Errorf("feishu webhook error[%d]: %s", base.Code, base.Msg)
	}
	return nil
}

// sign computes the custom bot signature: HMAC-SHA256 keyed with
// "timestamp\nsecret" over an empty message, base64 encoded.
func sign(ts int64, secret string) string {
	key := fmt.Sprintf("%d\n%s", ts, secret)
	h := hmac.New(sha256.New, []byte(key))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

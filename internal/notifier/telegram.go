package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const telegramAPI = "https://api.telegram.org"

type TelegramNotifier struct {
	Token   string
	ChatID  string
	BaseURL string
	Client  *http.Client
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		Token:   token,
		ChatID:  chatID,
		BaseURL: telegramAPI,
		Client:  &http.Client{Timeout: notifyTimeout},
	}
}

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// FormatFindings renders the alert text, one line per port.
func FormatFindings(findings []Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "homeports: %d new open port(s)\n", len(findings))
	for _, f := range findings {
		host := f.IP
		if f.Name != "" {
			host = fmt.Sprintf("%s (%s)", f.IP, f.Name)
		}
		fmt.Fprintf(&b, "\n%s:%d %s [%s]", host, f.Port.Port, f.Port.Service, f.Port.Risk)
		if f.Port.RiskDesc != "" {
			fmt.Fprintf(&b, " %s", f.Port.RiskDesc)
		}
	}
	return b.String()
}

func (t *TelegramNotifier) NotifyNewOpenPorts(ctx context.Context, findings []Finding) error {
	if len(findings) == 0 {
		return nil
	}

	body, err := json.Marshal(telegramMessage{ChatID: t.ChatID, Text: FormatFindings(findings)})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.BaseURL, "/"), t.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Package announce posts messages about newly stored keys.
package announce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/config"
)

// DiscordURL is the Discord API base.
var DiscordURL = "https://discord.com/api"

const defaultDiscordColor = 0x5865F2

type webhookMessageCreate struct {
	Content         string           `json:"content,omitempty"`
	Embeds          []embed          `json:"embeds,omitempty"`
	AllowedMentions *allowedMentions `json:"allowed_mentions,omitempty"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Author      *embedAuthor `json:"author,omitempty"`
}

type embedAuthor struct {
	Name    string `json:"name,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

func clampString(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// Discord posts msg to a Discord webhook.
func Discord(ctx context.Context, client *http.Client, msg string, cfg config.Discord) error {
	log.WithField("webhook", cfg.WebhookID).Debug("posting to discord")
	if client == nil {
		client = http.DefaultClient
	}

	color := cfg.Color
	if color <= 0 || color > 0xFFFFFF {
		color = defaultDiscordColor
	}
	description := clampString(strings.TrimSpace(msg), 4096)

	u, err := url.Parse(DiscordURL)
	if err != nil {
		return fmt.Errorf("discord: failed to parse API url: %w", err)
	}
	u = u.JoinPath("webhooks", cfg.WebhookID, cfg.WebhookToken)

	bts, err := json.Marshal(webhookMessageCreate{
		Embeds: []embed{{
			Title: "New FCS keys",
			Author: &embedAuthor{
				Name:    clampString(strings.TrimSpace(cfg.Author), 256),
				IconURL: cfg.IconURL,
			},
			Description: description,
			Color:       color,
		}},
		AllowedMentions: &allowedMentions{Parse: []string{}},
	})
	if err != nil {
		return fmt.Errorf("discord: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(bts))
	if err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: failed to POST: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("discord: bad status code: %s (response: %s)", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

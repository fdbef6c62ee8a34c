package announce

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/config"
	"github.com/mattn/go-mastodon"
)

// mastodonLimit is the default status length limit.
const mastodonLimit = 500

// Mastodon posts msg as a new status.
func Mastodon(ctx context.Context, msg string, cfg config.Mastodon) error {
	log.WithField("server", cfg.Server).Debug("posting to mastodon")

	client := mastodon.NewClient(&mastodon.Config{
		Server:       cfg.Server,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AccessToken:  cfg.AccessToken,
	})

	if _, err := client.PostStatus(ctx, &mastodon.Toot{
		Status: clampString(msg, mastodonLimit),
	}); err != nil {
		return fmt.Errorf("failed to post to mastodon: %w", err)
	}
	return nil
}

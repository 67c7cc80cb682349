// Package notifier delivers review requests, thread replies and operator
// alerts through Slack.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/slack-go/slack"

	"github.com/3eLLenKa/review-rotation/internal/domain"
)

// Block action ids carried by the buttons of a review request. The button
// value is the review's thread id.
const (
	ActionAccept  = "accept_review"
	ActionDecline = "decline_review"

	requestActionsBlockID = "review_request_actions"
)

type Config struct {
	ReviewChannelID string
	ErrorsChannelID string
	Username        string
	IconURL         string

	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

type Slack struct {
	log *slog.Logger
	api *slack.Client
	cfg Config
}

func New(log *slog.Logger, token string, cfg Config, opts ...slack.Option) *Slack {
	if cfg.Attempts == 0 {
		cfg.Attempts = 1
	}
	return &Slack{
		log: log,
		api: slack.New(token, opts...),
		cfg: cfg,
	}
}

// withRetry retries transient failures with exponential backoff. Errors
// reported by the Slack API itself (channel_not_found, not_in_channel, ...)
// are returned right away.
func (s *Slack) withRetry(ctx context.Context, operation string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(s.cfg.Attempts),
		retry.Delay(s.cfg.Delay),
		retry.MaxDelay(s.cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var apiErr slack.SlackErrorResponse
			return !errors.As(err, &apiErr)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.log.Warn("notifier: slack call failed, retrying",
				slog.String("operation", operation), slog.Uint64("attempt", uint64(n+1)), slog.Any("error", err))
		}),
	)
}

func (s *Slack) openDM(ctx context.Context, userID string) (string, error) {
	var channelID string
	err := s.withRetry(ctx, "conversations.open", func() error {
		ch, _, _, err := s.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{Users: []string{userID}})
		if err != nil {
			return err
		}
		channelID = ch.ID
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("open direct conversation with %s: %w", userID, err)
	}
	return channelID, nil
}

func (s *Slack) identity() []slack.MsgOption {
	opts := []slack.MsgOption{}
	if s.cfg.Username != "" {
		opts = append(opts, slack.MsgOptionUsername(s.cfg.Username))
	}
	if s.cfg.IconURL != "" {
		opts = append(opts, slack.MsgOptionIconURL(s.cfg.IconURL))
	}
	return opts
}

// SendDirect messages userID and returns the timestamp of the new message,
// which is the handle later needed to update it.
func (s *Slack) SendDirect(ctx context.Context, userID string, msg domain.Message) (string, error) {
	channelID, err := s.openDM(ctx, userID)
	if err != nil {
		return "", err
	}

	opts := append(s.identity(), slack.MsgOptionText(msg.Text, false), slack.MsgOptionBlocks(messageBlocks(msg)...))

	var ts string
	err = s.withRetry(ctx, "chat.postMessage", func() error {
		_, respTS, err := s.api.PostMessageContext(ctx, channelID, opts...)
		ts = respTS
		return err
	})
	if err != nil {
		return "", fmt.Errorf("send direct message to %s: %w", userID, err)
	}
	return ts, nil
}

func (s *Slack) UpdateDirect(ctx context.Context, userID, messageTS string, msg domain.Message) error {
	channelID, err := s.openDM(ctx, userID)
	if err != nil {
		return err
	}

	err = s.withRetry(ctx, "chat.update", func() error {
		_, _, _, err := s.api.UpdateMessageContext(ctx, channelID, messageTS,
			slack.MsgOptionText(msg.Text, false), slack.MsgOptionBlocks(messageBlocks(msg)...))
		return err
	})
	if err != nil {
		return fmt.Errorf("update direct message %s of %s: %w", messageTS, userID, err)
	}
	return nil
}

func (s *Slack) PostToThread(ctx context.Context, threadID, text string) error {
	opts := append(s.identity(), slack.MsgOptionText(text, false), slack.MsgOptionTS(threadID))

	err := s.withRetry(ctx, "chat.postMessage", func() error {
		_, _, err := s.api.PostMessageContext(ctx, s.cfg.ReviewChannelID, opts...)
		return err
	})
	if err != nil {
		return fmt.Errorf("reply to review thread %s: %w", threadID, err)
	}
	return nil
}

// Report posts to the operators channel. Without a configured channel the
// text only goes to the log.
func (s *Slack) Report(ctx context.Context, text string) error {
	if s.cfg.ErrorsChannelID == "" {
		s.log.Warn("notifier: no errors channel configured", slog.String("text", text))
		return nil
	}

	opts := append(s.identity(), slack.MsgOptionText(text, false))
	return s.withRetry(ctx, "chat.postMessage", func() error {
		_, _, err := s.api.PostMessageContext(ctx, s.cfg.ErrorsChannelID, opts...)
		return err
	})
}

// Ping checks that the bot token is still valid.
func (s *Slack) Ping(ctx context.Context) error {
	if _, err := s.api.AuthTestContext(ctx); err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	return nil
}

func messageBlocks(msg domain.Message) []slack.Block {
	blocks := make([]slack.Block, 0, 3)

	if msg.Context != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, msg.Context, false, false)))
	}

	blocks = append(blocks, slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, msg.Text, false, false), nil, nil))

	if msg.Actions {
		accept := slack.NewButtonBlockElement(ActionAccept, msg.ThreadID,
			slack.NewTextBlockObject(slack.PlainTextType, "Accept", false, false)).WithStyle(slack.StylePrimary)
		decline := slack.NewButtonBlockElement(ActionDecline, msg.ThreadID,
			slack.NewTextBlockObject(slack.PlainTextType, "Decline", false, false)).WithStyle(slack.StyleDanger)
		blocks = append(blocks, slack.NewActionBlock(requestActionsBlockID, accept, decline))
	}

	return blocks
}

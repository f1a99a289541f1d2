package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	slackapi "github.com/slack-go/slack"

	"github.com/nextlevelbuilder/browserbot/internal/bus"
)

// maxMessageLen is the text length Slack renders without truncation.
const maxMessageLen = 4000

// SendError is returned when Slack rejects a post. Code is Slack's
// machine-readable error (e.g. "channel_not_found", "ratelimited").
type SendError struct {
	ChatID string
	Code   string
	Err    error
}

func (e *SendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("slack: post message to %s: %s", e.ChatID, e.Code)
	}
	return fmt.Sprintf("slack: post message to %s: %v", e.ChatID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ErrorCode implements channels.CodedError.
func (e *SendError) ErrorCode() string { return e.Code }

// ErrorCode extracts the Slack error code from err, or "" if there is none.
func ErrorCode(err error) string {
	var se *SendError
	if errors.As(err, &se) && se.Code != "" {
		return se.Code
	}
	var rl *slackapi.RateLimitedError
	if errors.As(err, &rl) {
		return "ratelimited"
	}
	var resp slackapi.SlackErrorResponse
	if errors.As(err, &resp) {
		return resp.Err
	}
	return ""
}

// Send posts msg to its conversation, threaded under ThreadTS when set.
// Long content is split into several messages.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if msg.ChatID == "" {
		return fmt.Errorf("empty chat ID for slack send")
	}
	if msg.Content == "" {
		return nil
	}

	for _, chunk := range chunkText(msg.Content, maxMessageLen) {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("slack send: %w", err)
		}

		opts := []slackapi.MsgOption{slackapi.MsgOptionText(chunk, false)}
		if msg.ThreadTS != "" {
			opts = append(opts, slackapi.MsgOptionTS(msg.ThreadTS))
		}
		if _, _, err := c.api.PostMessageContext(ctx, msg.ChatID, opts...); err != nil {
			return &SendError{ChatID: msg.ChatID, Code: ErrorCode(err), Err: err}
		}
	}
	return nil
}

// chunkText splits content into pieces of at most maxLen bytes, preferring
// newline boundaries and never splitting a UTF-8 sequence.
func chunkText(content string, maxLen int) []string {
	var chunks []string
	for len(content) > 0 {
		if len(content) <= maxLen {
			chunks = append(chunks, content)
			break
		}

		cutAt := maxLen
		if idx := strings.LastIndexByte(content[:maxLen], '\n'); idx > maxLen/2 {
			cutAt = idx + 1
		} else {
			for cutAt > 0 && !utf8.RuneStart(content[cutAt]) {
				cutAt--
			}
			// No rune start in range: the bytes are not valid UTF-8.
			if cutAt == 0 {
				cutAt = maxLen
			}
		}
		chunks = append(chunks, content[:cutAt])
		content = content[cutAt:]
	}
	return chunks
}

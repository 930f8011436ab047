// Package command implements a thin command surface: one method per
// command, returning a reply string, so any chat transport can drive
// it without this package knowing about the transport.
package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"athena/libs/condition"
	"athena/libs/observability"
	"athena/libs/ticker"
)

// Surface adapts a condition.Processor to the reply-string shape a
// chat transport expects.
type Surface struct {
	processor *condition.Processor
}

// New wraps processor.
func New(processor *condition.Processor) *Surface {
	return &Surface{processor: processor}
}

// Add implements "/add <expr>".
func (s *Surface) Add(ctx context.Context, chatID int64, expr string) string {
	if strings.TrimSpace(expr) == "" {
		return "Wrong syntax"
	}

	_, err := s.processor.CreateCondition(ctx, chatID, expr)
	switch {
	case err == nil:
		return "Rule saved!"
	case errors.Is(err, ticker.ErrNonexistentAggregator):
		return fmt.Sprintf("Unknown aggregator: %v", err)
	case errors.Is(err, ticker.ErrWrongCondition):
		return "Wrong syntax"
	default:
		observability.LogEvent(ctx, "error", "add_condition_failed", map[string]any{
			"chat_id": chatID,
			"error":   err.Error(),
		})
		return ""
	}
}

// Remove implements "/remove <id>".
func (s *Surface) Remove(ctx context.Context, idText string) string {
	id, err := strconv.ParseInt(strings.TrimSpace(idText), 10, 64)
	if err != nil {
		return "Wrong notification id"
	}

	if err := s.processor.RemoveNotification(ctx, id); err != nil {
		if errors.Is(err, ticker.ErrNonexistentNotification) {
			return "Wrong notification id"
		}
		observability.LogEvent(ctx, "error", "remove_condition_failed", map[string]any{
			"notification_id": id,
			"error":           err.Error(),
		})
		return "Wrong notification id"
	}
	return "Notification removed!"
}

// List implements "/list".
func (s *Surface) List(chatID int64) string {
	notifications := s.processor.ListNotifications(chatID)
	if len(notifications) == 0 {
		return "You have no any notifications"
	}

	var b strings.Builder
	for i, n := range notifications {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d\t%s", n.ID, n.OriginCondition)
	}
	return b.String()
}

// Help implements "/help [cmd]". The actual help text catalogue is a
// transport collaborator; this method only implements the
// unknown-command dispatch rule.
func (s *Surface) Help(cmd string, lookup func(string) (string, bool)) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		if text, ok := lookup(""); ok {
			return text
		}
		return ""
	}
	if text, ok := lookup(cmd); ok {
		return text
	}
	return fmt.Sprintf("I don't know command %s", cmd)
}

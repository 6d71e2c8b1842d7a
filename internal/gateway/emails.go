package gateway

import (
	"context"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailbot/internal/gmail"
	"github.com/teemow/mailbot/internal/google"
	"github.com/teemow/mailbot/internal/instrumentation"
	"github.com/teemow/mailbot/internal/logging"
)

// ListEmails returns the most recent count emails in messages.list order.
//
// Messages are fetched concurrently, bounded by the fetch concurrency. The
// first failed fetch cancels the rest and fails the whole call.
func (s *Service) ListEmails(ctx context.Context, token *oauth2.Token, count int) ([]gmail.Email, error) {
	c, err := s.client(ctx, token)
	if err != nil {
		return nil, err
	}
	count = NormalizeCount(count)

	var ids []string
	err = s.call(ctx, instrumentation.OperationListMessages, func(ctx context.Context) error {
		var err error
		ids, err = c.ListMessageIDs(ctx, int64(count))
		return err
	}, instrumentation.CountAttr(count))
	if err != nil {
		return nil, err
	}

	emails := make([]gmail.Email, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			var msg *gmailapi.Message
			err := s.call(gctx, instrumentation.OperationGetMessage, func(ctx context.Context) error {
				var err error
				msg, err = c.GetMessage(ctx, id)
				return err
			}, instrumentation.MessageIDAttr(id))
			if err != nil {
				return err
			}
			emails[i] = gmail.EmailFromMessage(msg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.metrics.RecordEmailsFetched(ctx, len(emails))
	s.logger.DebugContext(ctx, "emails fetched", "requested", count, "returned", len(emails))
	return emails, nil
}

// ApplyLabels adds labelIDs to an email.
func (s *Service) ApplyLabels(ctx context.Context, token *oauth2.Token, emailID string, labelIDs []string) error {
	return s.modify(ctx, token, emailID, labelIDs, true)
}

// RemoveLabels removes labelIDs from an email.
func (s *Service) RemoveLabels(ctx context.Context, token *oauth2.Token, emailID string, labelIDs []string) error {
	return s.modify(ctx, token, emailID, labelIDs, false)
}

func (s *Service) modify(ctx context.Context, token *oauth2.Token, emailID string, labelIDs []string, add bool) error {
	if !google.Valid(token) {
		return Unauthenticated()
	}
	emailID = strings.TrimSpace(emailID)
	ids := CleanIDs(labelIDs)
	if emailID == "" || len(ids) == 0 {
		return InvalidArgument(MsgInvalidMutation)
	}

	c, err := s.clientUnchecked(ctx, token)
	if err != nil {
		return err
	}

	var addIDs, removeIDs []string
	if add {
		addIDs = ids
	} else {
		removeIDs = ids
	}

	err = s.call(ctx, instrumentation.OperationModifyMessage, func(ctx context.Context) error {
		return c.ModifyMessage(ctx, emailID, addIDs, removeIDs)
	}, instrumentation.MessageIDAttr(emailID))
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "email labels modified",
		logging.EmailID(emailID),
		"added", len(addIDs),
		"removed", len(removeIDs),
	)
	return nil
}

// CleanIDs trims ids and drops blanks and duplicates, keeping first occurrence order.
func CleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

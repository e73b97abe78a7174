package push

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/npezzotti/gosocial/internal/stats"
	"github.com/npezzotti/gosocial/internal/types"
	"go.uber.org/zap"
)

// Report summarizes one fan-out.
type Report struct {
	Recipients int
	Sent       int
	Failed     int
}

// FanOut notifies every participant of a conversation except the sender.
// Delivery is best effort: each subscription gets exactly one attempt and a
// failure is logged without affecting any other subscription.
type FanOut struct {
	log           *zap.Logger
	subscriptions *Subscriptions
	dispatcher    Dispatcher
	stats         stats.StatsProvider
}

func NewFanOut(logger *zap.Logger, subs *Subscriptions, dispatcher Dispatcher, st stats.StatsProvider) *FanOut {
	st.RegisterMetric(stats.PushDispatched)
	st.RegisterMetric(stats.PushFailed)

	return &FanOut{
		log:           logger.Named("push"),
		subscriptions: subs,
		dispatcher:    dispatcher,
		stats:         st,
	}
}

func (f *FanOut) Notify(ctx context.Context, conv types.Conversation, msg types.Message) Report {
	var report Report

	recipients := conv.Others(msg.SenderId)
	report.Recipients = len(recipients)
	if len(recipients) == 0 {
		return report
	}

	subs, err := f.subscriptions.ForUsers(ctx, recipients)
	if err != nil {
		f.log.Error("lookup subscriptions", zap.String("conversation_id", conv.Id), zap.Error(err))
		return report
	}

	payload, err := json.Marshal(Payload{
		Title:  "New message from " + msg.SenderName,
		Body:   msg.Text,
		ChatId: conv.Id,
	})
	if err != nil {
		f.log.Error("encode payload", zap.Error(err))
		return report
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, sub := range subs {
		// a subscription registered to the sender's account is never a target
		if sub.UserId == msg.SenderId {
			continue
		}

		wg.Add(1)
		go func(sub types.PushSubscription) {
			defer wg.Done()

			err := f.dispatcher.Dispatch(ctx, sub, payload)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				f.stats.Incr(stats.PushFailed)

				var dErr *DispatchError
				if !errors.As(err, &dErr) {
					dErr = &DispatchError{Endpoint: sub.Endpoint, Err: err}
				}
				f.log.Warn("push dispatch failed",
					zap.String("user_id", sub.UserId),
					zap.String("endpoint", dErr.Endpoint),
					zap.Int("status", dErr.StatusCode),
					zap.Error(dErr.Err),
				)
				return
			}

			report.Sent++
			f.stats.Incr(stats.PushDispatched)
			f.log.Debug("push sent", zap.String("user_id", sub.UserId), zap.String("endpoint", sub.Endpoint))
		}(sub)
	}
	wg.Wait()

	return report
}

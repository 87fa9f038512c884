package botpool

import (
	"context"
	"time"

	"github.com/swarmhost/swarmhost/internal/config/notify"
)

// defaultIdlePoll is how long the notification loop sleeps when no
// batch is pending. Fixed daily rules become due again, so "nothing
// pending" is never treated as "nothing ever".
const defaultIdlePoll = time.Minute

// notifyLoop schedules and delivers the instance's notification rules
// until the context is canceled.
func (w *worker) notifyLoop(ctx context.Context) {
	if len(w.cfg.Notifications) == 0 {
		w.logger.Debug("No notification rules, scheduler idle")
		return
	}

	for {
		batch := w.cfg.NearestBatch(time.Now().UTC())
		if batch == nil {
			if !sleep(ctx, w.idlePoll) {
				return
			}
			continue
		}
		if !sleep(ctx, batch.WaitFor()) {
			return
		}
		for _, rule := range batch.Rules() {
			w.deliverRule(ctx, rule)
		}
	}
}

// deliverRule resolves recipients and sends the rule's message to each
// of them. Delivery is best effort: one failed recipient is logged and
// the rest still get theirs.
func (w *worker) deliverRule(ctx context.Context, rule *notify.Rule) {
	recipients, err := rule.Recipients(ctx, w.st)
	if err != nil {
		w.logger.Error("Failed to resolve notification recipients", "error", err)
		return
	}
	sent := 0
	for _, user := range recipients {
		text, ok, err := rule.ResolveMessage(ctx, w.st, user)
		if err != nil {
			w.logger.Error("Failed to resolve notification message",
				"user", user.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := w.client.SendText(ctx, user.ID, text, nil); err != nil {
			w.logger.Error("Failed to deliver notification",
				"user", user.ID, "error", err)
			continue
		}
		sent++
	}
	w.logger.Info("Notification delivered", "recipients", len(recipients), "sent", sent)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

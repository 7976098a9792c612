package engine

import "log/slog"

// NotificationType distinguishes controller notifications.
type NotificationType string

const (
	NotifyStateChanged NotificationType = "state_changed"
	NotifyYearAdvanced NotificationType = "year_advanced"
)

// YearUpdate accompanies a year_advanced notification.
type YearUpdate struct {
	Result      YearResult `json:"result"`
	IsRunning   bool       `json:"is_running"`
	CurrentYear int        `json:"current_year"`
}

// Notification is delivered to subscribers. Exactly one of Snapshot and
// Update is set, depending on Type.
type Notification struct {
	Type     NotificationType `json:"type"`
	Snapshot *Snapshot        `json:"snapshot,omitempty"`
	Update   *YearUpdate      `json:"update,omitempty"`
}

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 64

// Subscribe registers a new listener. The channel is closed by Unsubscribe.
// A subscriber whose buffer is full misses notifications rather than
// blocking the controller.
func (c *Controller) Subscribe() (int, <-chan Notification) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextSub++
	ch := make(chan Notification, subscriberBuffer)
	c.subs[c.nextSub] = ch
	return c.nextSub, ch
}

// Unsubscribe removes a listener and closes its channel.
func (c *Controller) Unsubscribe(id int) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if ch, ok := c.subs[id]; ok {
		close(ch)
		delete(c.subs, id)
	}
}

// unlockAndDispatch releases c.mu and then delivers notes. The subscriber
// lock is taken before c.mu is released so that notifications from
// concurrent callers reach subscribers in the order they were produced.
func (c *Controller) unlockAndDispatch(notes []Notification) {
	if len(notes) == 0 {
		c.mu.Unlock()
		return
	}
	c.subMu.Lock()
	c.mu.Unlock()
	defer c.subMu.Unlock()

	for _, n := range notes {
		for id, ch := range c.subs {
			select {
			case ch <- n:
			default:
				slog.Warn("subscriber lagging, notification dropped", "subscriber", id, "type", string(n.Type))
			}
		}
	}
}

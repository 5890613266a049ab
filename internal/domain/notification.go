package domain

// Notification types an instance may deliver. Servers are free to add new
// ones; anything unrecognized should be displayed generically, not rejected.
const (
	NotificationMention       = "mention"
	NotificationFollow        = "follow"
	NotificationFavourite     = "favourite"
	NotificationReblog        = "reblog"
	NotificationPoll          = "poll"
	NotificationFollowRequest = "follow_request"
)

type Notification struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	CreatedAt string  `json:"created_at"`
	Account   Account `json:"account"`
	Status    *Status `json:"status,omitempty"`
}

package conversation

import "context"

// Quota tracks the user's storage usage, refreshed after every operation
// that changes stored volume (trash, delete, attachments).
type Quota struct {
	cv *Conversation

	Quota   int64 `json:"quota"`
	Storage int64 `json:"storage"`
}

func newQuota(cv *Conversation) *Quota {
	return &Quota{cv: cv}
}

// Refresh reloads usage from the workspace service
func (q *Quota) Refresh(ctx context.Context) error {
	path := "/workspace/quota/user/" + q.cv.session.UserID
	return q.cv.client.Get(ctx, path, q)
}

// Remaining returns the unused byte allowance, never negative
func (q *Quota) Remaining() int64 {
	remaining := q.Quota - q.Storage
	if remaining < 0 {
		return 0
	}
	return remaining
}

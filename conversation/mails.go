package conversation

import (
	"context"
	"net/url"
	"strconv"

	"webmail/models"
	"webmail/utils"
)

// Mails is a paginated, filterable mail listing. It is bound either to a
// fixed system-folder API descriptor or to a user folder id, and owns the
// selection over its items.
type Mails struct {
	cv         *Conversation
	api        *API
	userFolder *UserFolder

	selection *models.Selection[*Mail]

	// PageNumber is the last page fetched. Full is the pagination-exhausted
	// sentinel: set when a fetch comes back empty, cleared only by Refresh.
	PageNumber int
	Full       bool
	Loading    bool
}

func newAPIMails(cv *Conversation, api API) *Mails {
	return &Mails{
		cv:        cv,
		api:       &api,
		selection: models.NewSelection[*Mail](nil),
	}
}

func newFolderMails(cv *Conversation, folder *UserFolder) *Mails {
	return &Mails{
		cv:         cv,
		userFolder: folder,
		selection:  models.NewSelection[*Mail](nil),
	}
}

// Selection exposes the backing list and its selected view
func (m *Mails) Selection() *models.Selection[*Mail] {
	return m.selection
}

// All returns the backing list in fetch order
func (m *Mails) All() []*Mail {
	return m.selection.All()
}

// Push appends a mail to the backing list
func (m *Mails) Push(mail *Mail) {
	mail.attach(m.cv)
	m.selection.Push(mail)
}

// SyncOptions controls one listing fetch. Append keeps the already-loaded
// items and adds the fetched page after them; by default the list is
// replaced.
type SyncOptions struct {
	PageNumber   int
	SearchText   string
	Append       bool
	FilterUnread bool
	SelectAll    bool
}

// Sync fetches one page of the listing. Loading is raised for page-0
// fetches, which is also when a new search starts. An empty result page sets
// Full; fetched items are appended in order, selected on arrival when
// SelectAll is set.
func (m *Mails) Sync(ctx context.Context, opts SyncOptions) error {
	m.Loading = opts.PageNumber == 0

	query := url.Values{}
	query.Set("page", strconv.Itoa(opts.PageNumber))
	query.Set("unread", strconv.FormatBool(opts.FilterUnread))
	if opts.SearchText != "" {
		query.Set("search", opts.SearchText)
	}

	var path string
	if m.userFolder != nil {
		query.Set("restrain", "")
		path = "/conversation/list/" + m.userFolder.ID + "?" + query.Encode()
	} else {
		path = m.api.Get + "?" + query.Encode()
	}

	var fetched []*Mail
	if err := m.cv.client.Get(ctx, path, &fetched); err != nil {
		return err
	}

	if !opts.Append {
		m.selection.Clear()
	}
	for _, mail := range fetched {
		mail.attach(m.cv)
		if opts.SelectAll {
			mail.SetSelected(true)
		}
		m.selection.Push(mail)
	}

	if len(fetched) == 0 {
		m.Full = true
	}
	m.PageNumber = opts.PageNumber
	m.Loading = false
	return nil
}

// Refresh resets pagination and re-syncs from scratch. This is the only way
// to resume fetching once Full is set.
func (m *Mails) Refresh(ctx context.Context) error {
	m.PageNumber = 0
	m.Full = false
	return m.Sync(ctx, SyncOptions{})
}

func (m *Mails) selectedIDs(mails []*Mail) url.Values {
	values := url.Values{}
	for _, mail := range mails {
		values.Add("id", mail.ID)
	}
	return values
}

// ToTrash bulk-trashes the current selection in one request, refreshes the
// trash listing and the quota, and drops the selected items from the list.
// Failures are reported through the notifier.
func (m *Mails) ToTrash(ctx context.Context) {
	selected := m.selection.Selected()
	if len(selected) == 0 {
		return
	}

	path := "/conversation/trash?" + m.selectedIDs(selected).Encode()
	if err := m.cv.client.Put(ctx, path, nil, nil); err != nil {
		m.cv.notify.Error(utils.UserMessage(err))
		return
	}

	if err := m.cv.Folders.Trash.Mails().Refresh(ctx); err != nil {
		m.cv.logger.Warn("trash refresh after bulk trash: %v", err)
	}
	if err := m.cv.Quota.Refresh(ctx); err != nil {
		m.cv.logger.Warn("quota refresh after bulk trash: %v", err)
	}
	m.selection.RemoveSelection()
}

// RemoveSelection drops the selected items from the backing list without any
// server call.
func (m *Mails) RemoveSelection() {
	m.selection.RemoveSelection()
}

// MoveSelection files the selected messages into a user folder in one request
func (m *Mails) MoveSelection(ctx context.Context, destination *UserFolder) error {
	selected := m.selection.Selected()
	if len(selected) == 0 {
		return nil
	}
	path := "move/userfolder/" + destination.ID + "?" + m.selectedIDs(selected).Encode()
	return m.cv.client.Put(ctx, path, nil, nil)
}

// RemoveFromFolder moves the selected messages back to their system folder
// root in one request.
func (m *Mails) RemoveFromFolder(ctx context.Context) error {
	selected := m.selection.Selected()
	if len(selected) == 0 {
		return nil
	}
	return m.cv.client.Put(ctx, "move/root?"+m.selectedIDs(selected).Encode(), nil, nil)
}

// ToggleUnread batch-toggles the unread flag on the selection. Only messages
// classified INBOX or OUTBOX are valid targets; the rest are silently
// dropped from the batch. Local flags change only after the backend
// confirms, so a failure needs no rollback and is just notified.
func (m *Mails) ToggleUnread(ctx context.Context, unread bool) {
	var selected []*Mail
	for _, mail := range m.selection.Selected() {
		folder := mail.SystemFolder()
		if folder == FolderInbox || folder == FolderOutbox {
			selected = append(selected, mail)
		}
	}
	if len(selected) == 0 {
		return
	}

	query := m.selectedIDs(selected)
	query.Set("unread", strconv.FormatBool(unread))
	if err := m.cv.client.Post(ctx, "/conversation/toggleUnread?"+query.Encode(), nil, nil); err != nil {
		m.cv.notify.Error(utils.UserMessage(err))
		return
	}

	if err := m.cv.Quota.Refresh(ctx); err != nil {
		m.cv.logger.Warn("quota refresh after toggleUnread: %v", err)
	}
	for _, mail := range selected {
		mail.Unread = unread
	}
}

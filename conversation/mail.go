// Package conversation is the client-side store behind the webmail views:
// system and user folders, their paginated mail listings, and the
// cross-cutting session aggregate. All state is server-backed; local
// mutations are either confirmed by a response merge or explicitly
// optimistic (unread counters).
package conversation

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"webmail/models"
	"webmail/utils"
)

// System folder names, fixed and not user-manageable.
const (
	FolderInbox  = "INBOX"
	FolderOutbox = "OUTBOX"
	FolderDraft  = "DRAFT"
	FolderTrash  = "TRASH"
)

// MailState is the lifecycle state of a message
type MailState string

const (
	StateDraft MailState = "DRAFT"
	StateSent  MailState = "SENT"
)

// Timestamp is an epoch-millisecond value. The backend emits it as a number
// in some payloads and a string in others.
type Timestamp string

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*t = ""
		return nil
	}
	*t = Timestamp(s)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + string(t) + `"`), nil
}

// Time converts the epoch-ms value; the zero time for unparseable input.
func (t Timestamp) Time() time.Time {
	ms, err := strconv.ParseInt(string(t), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Mail is a single message. A mail without an id is an unsaved draft; ids are
// only ever assigned by the backend. Instances are created through
// Conversation.NewMail or hydrated by a listing fetch, and always belong to
// exactly one Mails collection at a time.
type Mail struct {
	cv *Conversation

	ID           string            `json:"id,omitempty"`
	Date         Timestamp         `json:"date,omitempty"`
	DisplayNames []models.NamePair `json:"displayNames,omitempty"`
	From         string            `json:"from,omitempty"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body,omitempty"`
	To           []models.User     `json:"to,omitempty"`
	Cc           []models.User     `json:"cc,omitempty"`
	Unread       bool              `json:"unread,omitempty"`
	State        MailState         `json:"state,omitempty"`

	Attachments        []*Attachment `json:"attachments,omitempty"`
	LoadingAttachments []*Attachment `json:"-"`

	// ParentConversation references the message being replied to. Sent as
	// In-Reply-To, never persisted on this mail.
	ParentConversation *Mail `json:"-"`

	AllowReply    bool `json:"-"`
	AllowReplyAll bool `json:"-"`

	selected bool
}

// NewMail creates an unsaved draft bound to this session.
func (c *Conversation) NewMail() *Mail {
	return &Mail{
		cv:            c,
		AllowReply:    true,
		AllowReplyAll: true,
	}
}

// attach binds a hydrated mail to the session context
func (m *Mail) attach(c *Conversation) {
	m.cv = c
	if m.LoadingAttachments == nil {
		m.LoadingAttachments = []*Attachment{}
	}
}

// IsSelected implements models.Selectable
func (m *Mail) IsSelected() bool {
	return m.selected
}

// SetSelected implements models.Selectable
func (m *Mail) SetSelected(selected bool) {
	m.selected = selected
}

// IsUserAuthor reports whether the session user wrote this message
func (m *Mail) IsUserAuthor() bool {
	return m.From == m.cv.session.UserID
}

// SystemFolder classifies the message relative to the folder it is viewed
// from: INBOX when addressed to the session user (directly or through a
// group), OUTBOX when authored by them, DRAFT for their unsent drafts, empty
// otherwise. When both the INBOX and OUTBOX conditions hold in some other
// folder, INBOX wins; the checks run in that order.
func (m *Mail) SystemFolder() string {
	current := m.cv.CurrentFolder().GetName()
	session := m.cv.session

	if current != FolderOutbox && (session.IsMeInside(m.To) || session.IsMeInside(m.Cc)) && m.State == StateSent {
		return FolderInbox
	}
	if current != FolderInbox && m.IsUserAuthor() && m.State == StateSent {
		return FolderOutbox
	}
	if m.IsUserAuthor() && m.State == StateDraft {
		return FolderDraft
	}
	return ""
}

// MatchSystemIcon returns the list icon for the message
func (m *Mail) MatchSystemIcon() string {
	switch m.SystemFolder() {
	case FolderInbox:
		return "mail-in"
	case FolderOutbox:
		return "mail-out"
	case FolderDraft:
		return "draft"
	}
	return ""
}

// IsRecipientGroup reports whether the first recipient is a group
func (m *Mail) IsRecipientGroup() bool {
	if len(m.To) == 0 {
		return false
	}
	to := m.Map(m.To[0].ID)
	if m.To[0].IsGroup() {
		return true
	}
	return to.IsGroup()
}

func (m *Mail) isAvatarGroup(systemFolder string) bool {
	if systemFolder == FolderInbox {
		return false
	}
	return len(m.To) > 1 || m.IsRecipientGroup()
}

func (m *Mail) isAvatarUnknown(systemFolder string) bool {
	if systemFolder == FolderInbox && m.From == "" {
		return true
	}
	if systemFolder == FolderOutbox && len(m.To) == 1 && m.To[0].ID == "" {
		return true
	}
	return len(m.To) == 0
}

func (m *Mail) isAvatarAlone() bool {
	if m.SystemFolder() == FolderInbox {
		return true
	}
	return len(m.To) == 1 && !m.IsRecipientGroup()
}

// MatchAvatar returns the avatar URL for the message row. Pure presentation
// derived from the folder classification and recipient shape.
func (m *Mail) MatchAvatar() string {
	systemFolder := m.SystemFolder()
	if m.isAvatarGroup(systemFolder) {
		return "/img/illustrations/group-avatar.svg?thumbnail=100x100"
	}
	if m.isAvatarUnknown(systemFolder) {
		return "/img/illustrations/unknown-avatar.svg?thumbnail=100x100"
	}
	if m.isAvatarAlone() {
		id := m.From
		if systemFolder != FolderInbox && len(m.To) > 0 {
			id = m.To[0].ID
		}
		return "/userbook/avatar/" + id + "?thumbnail=100x100"
	}
	return ""
}

// IsUnread reports whether the message should render as unread in the given
// folder. Drafts never do.
func (m *Mail) IsUnread(folder Folder) bool {
	return m.Unread && (m.SystemFolder() == FolderInbox || folder.GetName() == FolderInbox)
}

// Sender resolves the author into a display object
func (m *Mail) Sender() models.User {
	return models.MapUser(m.DisplayNames, m.From)
}

// Map resolves a user id against this message's displayNames list
func (m *Mail) Map(id string) models.User {
	return models.MapUser(m.DisplayNames, id)
}

// DisplaySubject returns the subject, falling back to the localized
// "no subject" placeholder.
func (m *Mail) DisplaySubject() string {
	if m.Subject != "" {
		return m.Subject
	}
	return m.cv.trans.T("nosubject")
}

// Preview extracts a short plain-text excerpt of the body for list rows
func (m *Mail) Preview() string {
	return utils.PreviewText(m.Body, 100)
}

// IsToday reports whether the message was sent today
func (m *Mail) IsToday() bool {
	y1, m1, d1 := m.Date.Time().Date()
	y2, m2, d2 := time.Now().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// IsYesterday reports whether the message was sent yesterday
func (m *Mail) IsYesterday() bool {
	y1, m1, d1 := m.Date.Time().Date()
	y2, m2, d2 := time.Now().AddDate(0, 0, -1).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// AppendSignature appends the user's signature block to the body
func (m *Mail) AppendSignature(signature string) {
	m.Body += `<div><br></div><div class="signature new-signature">` + signature + `</div>`
}

// ReplyKind selects the subject prefix and receiver handling of PrepareReply
type ReplyKind string

const (
	Reply   ReplyKind = "reply.re"
	Forward ReplyKind = "reply.fw"
)

// PrepareReply initializes this draft as a reply to or forward of origin:
// localized subject prefix (not doubled when already present), quoted body,
// and the In-Reply-To back-reference. copyReceivers carries origin's
// recipients over, for reply-all.
func (m *Mail) PrepareReply(origin *Mail, kind ReplyKind, copyReceivers bool) {
	prefix := m.cv.trans.T(string(kind))
	if strings.Contains(origin.Subject, prefix) {
		m.Subject = origin.Subject
	} else {
		m.Subject = prefix + " " + origin.Subject
	}

	if copyReceivers {
		m.To = origin.To
		m.Cc = origin.Cc
	}

	m.ParentConversation = origin
	m.Body = "<div><br></div><blockquote>" + origin.Body + "</blockquote>"
}

// draftData is the request body of draft and send calls
type draftData struct {
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	To      []string `json:"to"`
	Cc      []string `json:"cc"`
}

func (m *Mail) draftData() draftData {
	return draftData{
		Subject: m.Subject,
		Body:    m.Body,
		To:      pluckIDs(m.To),
		Cc:      pluckIDs(m.Cc),
	}
}

func pluckIDs(users []models.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

// SaveAsDraft persists the draft: an update when the backend already assigned
// an id, a creation otherwise. Server-assigned fields are merged back field
// by field; anything the response omits is left untouched.
func (m *Mail) SaveAsDraft(ctx context.Context) error {
	data := m.draftData()
	var patch mailPatch

	if m.ID != "" {
		if err := m.cv.client.Put(ctx, "/conversation/draft/"+m.ID, data, &patch); err != nil {
			return err
		}
	} else {
		path := "/conversation/draft"
		if m.ParentConversation != nil {
			path += "?In-Reply-To=" + url.QueryEscape(m.ParentConversation.ID)
		}
		if err := m.cv.client.Post(ctx, path, data, &patch); err != nil {
			return err
		}
	}

	m.applyPatch(&patch)
	return nil
}

// SendResult lists the recipients the backend could not deliver to.
type SendResult struct {
	Inactive    []string
	Undelivered []string
}

type sendResponse struct {
	Sent        int      `json:"sent"`
	Inactive    []string `json:"inactive"`
	Undelivered []string `json:"undelivered"`
}

// Send submits the message. The inbox unread counter is bumped up front when
// the user writes to themselves; that optimistic bump is not rolled back if
// the send fails. A failure is reported through the notifier and yields the
// zero SendResult, never an error.
func (m *Mail) Send(ctx context.Context) SendResult {
	data := m.draftData()

	if containsID(data.To, m.cv.session.UserID) {
		m.cv.Folders.Inbox.addUnread(1)
	}
	if containsID(data.Cc, m.cv.session.UserID) {
		m.cv.Folders.Inbox.addUnread(1)
	}

	if data.Subject == "" {
		data.Subject = m.cv.trans.T("nosubject")
	}

	query := url.Values{}
	if m.ID != "" {
		query.Set("id", m.ID)
	}
	if m.ParentConversation != nil {
		query.Set("In-Reply-To", m.ParentConversation.ID)
	}
	path := "/conversation/send"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var result sendResponse
	if err := m.cv.client.Post(ctx, path, data, &result); err != nil {
		m.cv.notify.Error(utils.UserMessage(err))
		return SendResult{}
	}

	if err := m.cv.Folders.Outbox.Mails().Refresh(ctx); err != nil {
		m.cv.logger.Warn("outbox refresh after send: %v", err)
	}
	if err := m.cv.Folders.Draft.Mails().Refresh(ctx); err != nil {
		m.cv.logger.Warn("draft refresh after send: %v", err)
	}

	if result.Sent > 0 {
		m.State = StateSent
		m.cv.notify.Info(m.cv.trans.T("mail.sent"))
	}

	return SendResult{Inactive: result.Inactive, Undelivered: result.Undelivered}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Open fetches the full message and merges it in. The current folder's
// unread counter drops optimistically before the fetch. Recipient id lists
// are resolved into display objects, the body is sanitized, and the inbox
// count and reply eligibility are recomputed. Concurrent opens of the same
// message share one request.
func (m *Mail) Open(ctx context.Context) error {
	return m.open(ctx, false)
}

// OpenForPrint fetches and merges the message without touching the inbox
// count or reply eligibility.
func (m *Mail) OpenForPrint(ctx context.Context) error {
	return m.open(ctx, true)
}

func (m *Mail) open(ctx context.Context, forPrint bool) error {
	if m.Unread && m.State != StateDraft {
		m.cv.CurrentFolder().addUnread(-1)
	}
	m.Unread = false

	patch, err, _ := m.cv.openGroup.Do(m.ID, func() (interface{}, error) {
		var p mailPatch
		if err := m.cv.client.Get(ctx, "/conversation/message/"+m.ID, &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
	if err != nil {
		return err
	}

	m.applyPatch(patch.(*mailPatch))
	m.Body = utils.SanitizeBody(m.Body)
	m.resolveReceivers()

	if !forPrint {
		if err := m.cv.Folders.Inbox.CountUnread(ctx); err != nil {
			return err
		}
		if err := m.UpdateAllowReply(ctx); err != nil {
			return err
		}
	}
	return nil
}

// resolveReceivers fills display names on to/cc references from the parallel
// displayNames list the detail payload carries.
func (m *Mail) resolveReceivers() {
	for i := range m.To {
		if m.To[i].DisplayName == "" {
			m.To[i] = models.MapUser(m.DisplayNames, m.To[i].ID)
		}
	}
	for i := range m.Cc {
		if m.Cc[i].DisplayName == "" {
			m.Cc[i] = models.MapUser(m.DisplayNames, m.Cc[i].ID)
		}
	}
}

// UpdateAllowReply recomputes reply eligibility. The reply target is the
// sender when viewing the inbox, the first recipient otherwise; a fully
// deleted target disables reply. Reply-all additionally requires every
// recipient to still exist, checked in order with a short-circuit on the
// first miss.
func (m *Mail) UpdateAllowReply(ctx context.Context) error {
	systemFolder := m.SystemFolder()

	var id string
	if systemFolder == FolderInbox {
		id = m.From
	} else if len(m.To) > 0 {
		id = m.To[0].ID
	}

	exists := false
	if id != "" {
		var err error
		exists, err = m.cv.userExists(ctx, id)
		if err != nil {
			return err
		}
	}
	m.AllowReply = exists

	if exists {
		for _, to := range m.To {
			ok, err := m.cv.userExists(ctx, to.ID)
			if err != nil {
				return err
			}
			if !ok {
				exists = false
				break
			}
		}
	}
	m.AllowReplyAll = exists
	return nil
}

// Remove trashes the message, or deletes it for good when it is already in
// the trash. Affected listings are refreshed.
func (m *Mail) Remove(ctx context.Context) error {
	if m.ID == "" {
		return nil
	}

	if m.cv.CurrentFolder().GetName() != FolderTrash {
		if err := m.cv.client.Put(ctx, "/conversation/trash?id="+url.QueryEscape(m.ID), nil, nil); err != nil {
			return err
		}
		if err := m.cv.CurrentFolder().Mails().Refresh(ctx); err != nil {
			return err
		}
		return m.cv.Folders.Trash.Mails().Refresh(ctx)
	}

	if err := m.cv.client.Delete(ctx, "/conversation/delete?id="+url.QueryEscape(m.ID)); err != nil {
		return err
	}
	return m.cv.Folders.Trash.Mails().Refresh(ctx)
}

// RemoveFromFolder moves the message back to its system folder root
func (m *Mail) RemoveFromFolder(ctx context.Context) error {
	return m.cv.client.Put(ctx, "move/root?id="+url.QueryEscape(m.ID), nil, nil)
}

// Restore brings a trashed message back to its prior folder
func (m *Mail) Restore(ctx context.Context) error {
	if err := m.cv.client.Put(ctx, "/conversation/restore?id="+url.QueryEscape(m.ID), nil, nil); err != nil {
		return err
	}
	return m.cv.Folders.Trash.Mails().Refresh(ctx)
}

// Move files the message into a user folder. The draft listing is refreshed
// alongside the current folder because moving a message can affect a pending
// reply reference.
func (m *Mail) Move(ctx context.Context, destination *UserFolder) error {
	path := fmt.Sprintf("move/userfolder/%s?id=%s", destination.ID, url.QueryEscape(m.ID))
	if err := m.cv.client.Put(ctx, path, nil, nil); err != nil {
		return err
	}
	if err := m.cv.CurrentFolder().Mails().Refresh(ctx); err != nil {
		return err
	}
	return m.cv.Folders.Draft.Mails().Refresh(ctx)
}

// Trash moves the message to the trash and refreshes the current and draft
// listings.
func (m *Mail) Trash(ctx context.Context) error {
	if err := m.cv.client.Put(ctx, "/conversation/trash?id="+url.QueryEscape(m.ID), nil, nil); err != nil {
		return err
	}
	if err := m.cv.CurrentFolder().Mails().Refresh(ctx); err != nil {
		return err
	}
	return m.cv.Folders.Draft.Mails().Refresh(ctx)
}

// mailPatch is the explicit field-merge shape for server responses: only the
// fields present in the payload overwrite local state, never a full replace.
type mailPatch struct {
	ID           *string            `json:"id"`
	Date         *Timestamp         `json:"date"`
	DisplayNames *[]models.NamePair `json:"displayNames"`
	From         *string            `json:"from"`
	Subject      *string            `json:"subject"`
	Body         *string            `json:"body"`
	To           *[]models.User     `json:"to"`
	Cc           *[]models.User     `json:"cc"`
	Unread       *bool              `json:"unread"`
	State        *MailState         `json:"state"`
	Attachments  *[]*Attachment     `json:"attachments"`
}

func (m *Mail) applyPatch(p *mailPatch) {
	if p.ID != nil {
		m.ID = *p.ID
	}
	if p.Date != nil {
		m.Date = *p.Date
	}
	if p.DisplayNames != nil {
		m.DisplayNames = *p.DisplayNames
	}
	if p.From != nil {
		m.From = *p.From
	}
	if p.Subject != nil {
		m.Subject = *p.Subject
	}
	if p.Body != nil {
		m.Body = *p.Body
	}
	if p.To != nil {
		m.To = *p.To
	}
	if p.Cc != nil {
		m.Cc = *p.Cc
	}
	if p.Unread != nil {
		m.Unread = *p.Unread
	}
	if p.State != nil {
		m.State = *p.State
	}
	if p.Attachments != nil {
		m.Attachments = *p.Attachments
	}
}

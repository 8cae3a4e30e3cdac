package conversation

import (
	"context"
	"fmt"
	"net/url"
)

// API is the fixed endpoint descriptor of a system folder's listing
type API struct {
	Get    string
	Post   string
	Put    string
	Delete string
}

// Folder is a mail container: one listing plus an unread counter. The
// counter is bookkept optimistically by open/send and corrected by
// CountUnread round-trips.
type Folder interface {
	GetName() string
	Mails() *Mails
	UnreadCount() int

	addUnread(delta int)
}

// SystemFolder is one of the four fixed folders
type SystemFolder struct {
	cv         *Conversation
	folderName string
	api        API
	mails      *Mails
	nbUnread   int
}

func newSystemFolder(cv *Conversation, name string) *SystemFolder {
	f := &SystemFolder{
		cv:         cv,
		folderName: name,
		api: API{
			Get:    "/conversation/list/" + name,
			Post:   "/conversation/list/" + name,
			Put:    "/conversation/list/" + name,
			Delete: "/conversation/list/" + name,
		},
	}
	f.mails = newAPIMails(cv, f.api)
	return f
}

// GetName returns the fixed folder name (INBOX, OUTBOX, DRAFT, TRASH)
func (f *SystemFolder) GetName() string {
	return f.folderName
}

// Mails returns the folder's listing
func (f *SystemFolder) Mails() *Mails {
	return f.mails
}

// UnreadCount returns the current unread counter
func (f *SystemFolder) UnreadCount() int {
	return f.nbUnread
}

func (f *SystemFolder) addUnread(delta int) {
	f.nbUnread += delta
	if f.nbUnread < 0 {
		f.nbUnread = 0
	}
}

// CountUnread refreshes the unread counter from the backend
func (f *SystemFolder) CountUnread(ctx context.Context) error {
	var result struct {
		Count int `json:"count"`
	}
	if err := f.cv.client.Get(ctx, "/conversation/count/"+f.folderName+"?unread=true", &result); err != nil {
		return err
	}
	f.nbUnread = result.Count
	return nil
}

// Empty hard-deletes everything in the trash, then refreshes its listing and
// the quota. Only meaningful on the TRASH folder.
func (f *SystemFolder) Empty(ctx context.Context) error {
	if err := f.cv.client.Delete(ctx, "/conversation/emptyTrash"); err != nil {
		return err
	}
	if err := f.mails.Refresh(ctx); err != nil {
		return err
	}
	return f.cv.Quota.Refresh(ctx)
}

// SystemFolders groups the four fixed folders
type SystemFolders struct {
	Inbox  *SystemFolder
	Outbox *SystemFolder
	Draft  *SystemFolder
	Trash  *SystemFolder
}

func newSystemFolders(cv *Conversation) *SystemFolders {
	return &SystemFolders{
		Inbox:  newSystemFolder(cv, FolderInbox),
		Outbox: newSystemFolder(cv, FolderOutbox),
		Draft:  newSystemFolder(cv, FolderDraft),
		Trash:  newSystemFolder(cv, FolderTrash),
	}
}

// ByName looks a system folder up by its fixed name
func (f *SystemFolders) ByName(name string) (*SystemFolder, bool) {
	switch name {
	case FolderInbox:
		return f.Inbox, true
	case FolderOutbox:
		return f.Outbox, true
	case FolderDraft:
		return f.Draft, true
	case FolderTrash:
		return f.Trash, true
	}
	return nil, false
}

// UserFolder is a user-created, nestable mail folder
type UserFolder struct {
	cv *Conversation

	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
	Trashed  bool   `json:"trashed"`

	parent   *UserFolder
	Children []*UserFolder `json:"-"`

	mails    *Mails
	nbUnread int
}

// GetName returns the folder name
func (f *UserFolder) GetName() string {
	return f.Name
}

// Mails returns the folder's listing
func (f *UserFolder) Mails() *Mails {
	return f.mails
}

// UnreadCount returns the current unread counter
func (f *UserFolder) UnreadCount() int {
	return f.nbUnread
}

func (f *UserFolder) addUnread(delta int) {
	f.nbUnread += delta
	if f.nbUnread < 0 {
		f.nbUnread = 0
	}
}

// Parent returns the containing folder, nil at the root
func (f *UserFolder) Parent() *UserFolder {
	return f.parent
}

// Depth returns the nesting depth, 1 for a root folder
func (f *UserFolder) Depth() int {
	depth := 1
	for p := f.parent; p != nil; p = p.parent {
		depth++
	}
	return depth
}

// CountUnread refreshes the unread counter from the backend
func (f *UserFolder) CountUnread(ctx context.Context) error {
	var result struct {
		Count int `json:"count"`
	}
	path := "/conversation/count/" + f.ID + "?restrain=&unread=true"
	if err := f.cv.client.Get(ctx, path, &result); err != nil {
		return err
	}
	f.nbUnread = result.Count
	return nil
}

// Update renames the folder
func (f *UserFolder) Update(ctx context.Context, name string) error {
	body := map[string]string{"name": name}
	if err := f.cv.client.Put(ctx, "/conversation/folder/"+f.ID, body, nil); err != nil {
		return err
	}
	f.Name = name
	return nil
}

// Trash moves the folder (and its messages) to the trash
func (f *UserFolder) Trash(ctx context.Context) error {
	if err := f.cv.client.Put(ctx, "/conversation/folder/trash/"+f.ID, nil, nil); err != nil {
		return err
	}
	f.Trashed = true
	return f.cv.UserFolders.Sync(ctx)
}

// Restore brings a trashed folder back
func (f *UserFolder) Restore(ctx context.Context) error {
	if err := f.cv.client.Put(ctx, "/conversation/folder/restore/"+f.ID, nil, nil); err != nil {
		return err
	}
	f.Trashed = false
	return f.cv.UserFolders.Sync(ctx)
}

// Delete removes a trashed folder for good
func (f *UserFolder) Delete(ctx context.Context) error {
	if err := f.cv.client.Delete(ctx, "/conversation/folder/"+f.ID); err != nil {
		return err
	}
	return f.cv.UserFolders.Sync(ctx)
}

// UserFolders is the registry of user folders: the flat list the backend
// returns plus the tree rebuilt from parent ids.
type UserFolders struct {
	cv *Conversation

	All   []*UserFolder
	Roots []*UserFolder
}

func newUserFolders(cv *Conversation) *UserFolders {
	return &UserFolders{cv: cv}
}

// Sync reloads the folder list and rebuilds the tree. Each folder keeps a
// listing bound to its id. Folders referencing a missing parent are kept as
// roots rather than dropped.
func (u *UserFolders) Sync(ctx context.Context) error {
	var fetched []*UserFolder
	if err := u.cv.client.Get(ctx, "/conversation/folders/list", &fetched); err != nil {
		return err
	}

	byID := make(map[string]*UserFolder, len(fetched))
	for _, folder := range fetched {
		folder.cv = u.cv
		folder.mails = newFolderMails(u.cv, folder)
		byID[folder.ID] = folder
	}

	var roots []*UserFolder
	for _, folder := range fetched {
		if parent, ok := byID[folder.ParentID]; ok && folder.ParentID != "" {
			folder.parent = parent
			parent.Children = append(parent.Children, folder)
		} else {
			roots = append(roots, folder)
		}
	}

	u.All = fetched
	u.Roots = roots
	return nil
}

// FindByID looks a folder up in the flat registry
func (u *UserFolders) FindByID(id string) (*UserFolder, bool) {
	for _, folder := range u.All {
		if folder.ID == id {
			return folder, true
		}
	}
	return nil, false
}

// Create adds a folder, optionally nested under parent, and re-syncs the
// registry. Nesting past the session's maximum depth is refused locally.
func (u *UserFolders) Create(ctx context.Context, name string, parent *UserFolder) (*UserFolder, error) {
	if parent != nil && parent.Depth() >= u.cv.MaxFolderDepth && u.cv.MaxFolderDepth > 0 {
		return nil, fmt.Errorf("folder depth limit of %d reached", u.cv.MaxFolderDepth)
	}

	body := map[string]string{"name": name}
	if parent != nil {
		body["parentId"] = parent.ID
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := u.cv.client.Post(ctx, "/conversation/folder", body, &created); err != nil {
		return nil, err
	}

	if err := u.Sync(ctx); err != nil {
		return nil, err
	}
	folder, ok := u.FindByID(created.ID)
	if !ok {
		return nil, fmt.Errorf("created folder %s missing from listing", url.QueryEscape(created.ID))
	}
	return folder, nil
}

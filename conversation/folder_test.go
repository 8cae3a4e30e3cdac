package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webmail/backendtest"
)

func TestUserFoldersBuildTree(t *testing.T) {
	cv, server, _ := newTestStore(t)
	rootID := server.AddFolder("Projects", "")
	childID := server.AddFolder("2026", rootID)
	grandID := server.AddFolder("Q1", childID)
	orphanID := server.AddFolder("Lost", "fld-ghost")

	require.NoError(t, cv.UserFolders.Sync(context.Background()))

	assert.Len(t, cv.UserFolders.All, 4)
	require.Len(t, cv.UserFolders.Roots, 2, "orphans are kept as roots")

	root, ok := cv.UserFolders.FindByID(rootID)
	require.True(t, ok)
	child, ok := cv.UserFolders.FindByID(childID)
	require.True(t, ok)
	grand, ok := cv.UserFolders.FindByID(grandID)
	require.True(t, ok)
	orphan, ok := cv.UserFolders.FindByID(orphanID)
	require.True(t, ok)

	assert.Nil(t, root.Parent())
	assert.Same(t, root, child.Parent())
	assert.Same(t, child, grand.Parent())
	assert.Equal(t, 1, root.Depth())
	assert.Equal(t, 3, grand.Depth())
	assert.Equal(t, 1, orphan.Depth())
	require.Len(t, root.Children, 1)
	assert.Equal(t, "2026", root.Children[0].Name)
}

func TestCreateFolder(t *testing.T) {
	cv, server, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, cv.Sync(ctx))

	root, err := cv.UserFolders.Create(ctx, "Projects", nil)
	require.NoError(t, err)
	assert.Equal(t, "Projects", root.Name)
	assert.Equal(t, 1, root.Depth())

	child, err := cv.UserFolders.Create(ctx, "2026", root)
	require.NoError(t, err)
	assert.Equal(t, 2, child.Depth())
	assert.Equal(t, root.ID, child.ParentID)

	require.Len(t, server.Folders, 2)
}

func TestCreateFolderRefusesPastDepthLimit(t *testing.T) {
	cv, server, _ := newTestStore(t)
	server.MaxDepth = 2
	ctx := context.Background()
	require.NoError(t, cv.Sync(ctx))

	root, err := cv.UserFolders.Create(ctx, "Projects", nil)
	require.NoError(t, err)
	child, err := cv.UserFolders.Create(ctx, "2026", root)
	require.NoError(t, err)

	before := len(server.Requests)
	_, err = cv.UserFolders.Create(ctx, "Q1", child)
	assert.Error(t, err)
	assert.Len(t, server.Requests, before, "refused locally, no request")
}

func TestUserFolderRename(t *testing.T) {
	cv, server, _ := newTestStore(t)
	id := server.AddFolder("Projets", "")
	ctx := context.Background()

	require.NoError(t, cv.UserFolders.Sync(ctx))
	folder, ok := cv.UserFolders.FindByID(id)
	require.True(t, ok)

	require.NoError(t, folder.Update(ctx, "Projects"))
	assert.Equal(t, "Projects", folder.Name)
	assert.Equal(t, "Projects", server.Folders[0].Name)
}

func TestUserFolderTrashRestoreDelete(t *testing.T) {
	cv, server, _ := newTestStore(t)
	id := server.AddFolder("Projects", "")
	ctx := context.Background()

	require.NoError(t, cv.UserFolders.Sync(ctx))
	folder, ok := cv.UserFolders.FindByID(id)
	require.True(t, ok)

	require.NoError(t, folder.Trash(ctx))
	assert.True(t, server.Folders[0].Trashed)
	refreshed, ok := cv.UserFolders.FindByID(id)
	require.True(t, ok)
	assert.True(t, refreshed.Trashed)

	require.NoError(t, refreshed.Restore(ctx))
	assert.False(t, server.Folders[0].Trashed)

	refreshed, ok = cv.UserFolders.FindByID(id)
	require.True(t, ok)
	require.NoError(t, refreshed.Delete(ctx))
	assert.Empty(t, server.Folders)
	_, ok = cv.UserFolders.FindByID(id)
	assert.False(t, ok, "the registry is re-synced after deletion")
}

func TestSystemFolderCountUnread(t *testing.T) {
	cv, server, _ := newTestStore(t)
	server.AddMail(&backendtest.MailRecord{Folder: FolderInbox, State: "SENT", Unread: true})
	server.AddMail(&backendtest.MailRecord{Folder: FolderInbox, State: "SENT", Unread: true})
	server.AddMail(&backendtest.MailRecord{Folder: FolderInbox, State: "SENT"})

	require.NoError(t, cv.Folders.Inbox.CountUnread(context.Background()))
	assert.Equal(t, 2, cv.Folders.Inbox.UnreadCount())
}

func TestUserFolderCountUnread(t *testing.T) {
	cv, server, _ := newTestStore(t)
	id := server.AddFolder("Projects", "")
	server.AddMail(&backendtest.MailRecord{Folder: id, State: "SENT", Unread: true})
	server.AddMail(&backendtest.MailRecord{Folder: id, State: "SENT"})
	ctx := context.Background()

	require.NoError(t, cv.UserFolders.Sync(ctx))
	folder, ok := cv.UserFolders.FindByID(id)
	require.True(t, ok)

	require.NoError(t, folder.CountUnread(ctx))
	assert.Equal(t, 1, folder.UnreadCount())
}

func TestUnreadCounterClampsAtZero(t *testing.T) {
	cv, _, _ := newTestStore(t)
	inbox := cv.Folders.Inbox

	inbox.addUnread(-5)
	assert.Zero(t, inbox.UnreadCount())

	inbox.addUnread(3)
	inbox.addUnread(-1)
	assert.Equal(t, 2, inbox.UnreadCount())
}

func TestEmptyTrash(t *testing.T) {
	cv, server, _ := newTestStore(t)
	server.AddMail(&backendtest.MailRecord{Folder: FolderTrash, State: "SENT"})
	server.AddMail(&backendtest.MailRecord{Folder: FolderTrash, State: "SENT"})
	server.AddMail(&backendtest.MailRecord{Folder: FolderInbox, State: "SENT"})
	ctx := context.Background()

	require.NoError(t, cv.Folders.Trash.Empty(ctx))

	assert.Empty(t, server.MailsIn("TRASH"))
	assert.Len(t, server.MailsIn("INBOX"), 1, "only the trash is emptied")
	assert.Empty(t, cv.Folders.Trash.Mails().All())
	assert.Equal(t, 1, server.QuotaCalls)
}

func TestSystemFoldersByName(t *testing.T) {
	cv, _, _ := newTestStore(t)

	inbox, ok := cv.Folders.ByName(FolderInbox)
	require.True(t, ok)
	assert.Equal(t, FolderInbox, inbox.GetName())

	_, ok = cv.Folders.ByName("ARCHIVE")
	assert.False(t, ok)
}

package conversation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webmail/backendtest"
)

func newAttachedMail(t *testing.T, cv *Conversation, server *backendtest.Server) *Mail {
	t.Helper()
	id := server.AddMail(&backendtest.MailRecord{Folder: FolderDraft, State: "DRAFT", From: "user-1"})
	mail := cv.NewMail()
	mail.ID = id
	return mail
}

func TestUploadAttachment(t *testing.T) {
	cv, server, notifier := newTestStore(t)
	mail := newAttachedMail(t, cv, server)

	content := "PDF bytes go here"
	att := NewAttachment("report.pdf", "application/pdf", int64(len(content)), strings.NewReader(content))
	require.NotEmpty(t, att.UploadID)

	mail.UploadAttachments(context.Background(), att)

	require.Len(t, mail.Attachments, 1)
	assert.Empty(t, mail.LoadingAttachments)
	assert.Empty(t, notifier.errors)
	assert.NotEmpty(t, att.ID)
	assert.Equal(t, "report.pdf", att.Filename)
	assert.Equal(t, int64(len(content)), att.Size)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, 100, att.Progress.Completion)

	record := server.Mails[mail.ID]
	require.Len(t, record.Attachments, 1)
	assert.Equal(t, "report.pdf", record.Attachments[0].Filename)
	assert.Equal(t, int64(len(content)), server.QuotaUsed)
	assert.Equal(t, server.QuotaUsed, cv.Quota.Storage, "quota refreshed after the upload")
}

func TestUploadSeveralAttachmentsInOrder(t *testing.T) {
	cv, server, _ := newTestStore(t)
	mail := newAttachedMail(t, cv, server)

	first := NewAttachment("a.txt", "text/plain", 1, strings.NewReader("a"))
	second := NewAttachment("b.txt", "text/plain", 1, strings.NewReader("b"))

	mail.UploadAttachments(context.Background(), first, second)

	require.Len(t, mail.Attachments, 2)
	assert.Equal(t, "a.txt", mail.Attachments[0].Filename)
	assert.Equal(t, "b.txt", mail.Attachments[1].Filename)
}

func TestUploadFailureLeavesNoTrace(t *testing.T) {
	cv, server, notifier := newTestStore(t)
	mail := newAttachedMail(t, cv, server)

	att := NewAttachment("report.pdf", "application/pdf", 4, strings.NewReader("data"))
	server.FailNext(500, "conversation.attachment.failed")

	mail.UploadAttachments(context.Background(), att)

	assert.Empty(t, mail.Attachments)
	assert.Empty(t, mail.LoadingAttachments)
	assert.Empty(t, att.ID)
	assert.Empty(t, server.Mails[mail.ID].Attachments)
	assert.Contains(t, notifier.errors, "conversation.attachment.failed")
}

func TestUploadFailureDoesNotStopTheBatch(t *testing.T) {
	cv, server, notifier := newTestStore(t)
	mail := newAttachedMail(t, cv, server)

	doomed := NewAttachment("bad.bin", "application/octet-stream", 3, strings.NewReader("bad"))
	fine := NewAttachment("ok.txt", "text/plain", 2, strings.NewReader("ok"))
	server.FailNext(500, "conversation.attachment.failed")

	mail.UploadAttachments(context.Background(), doomed, fine)

	require.Len(t, mail.Attachments, 1)
	assert.Equal(t, "ok.txt", mail.Attachments[0].Filename)
	assert.Len(t, notifier.errors, 1)
}

func TestDeleteAttachment(t *testing.T) {
	cv, server, _ := newTestStore(t)
	mail := newAttachedMail(t, cv, server)

	att := NewAttachment("report.pdf", "application/pdf", 4, strings.NewReader("data"))
	mail.UploadAttachments(context.Background(), att)
	require.Len(t, mail.Attachments, 1)

	require.NoError(t, mail.DeleteAttachment(context.Background(), att))

	assert.Empty(t, mail.Attachments)
	assert.Empty(t, server.Mails[mail.ID].Attachments)
	assert.Zero(t, server.QuotaUsed)
	assert.Zero(t, cv.Quota.Storage)
}

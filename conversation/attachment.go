package conversation

import (
	"context"
	"io"

	"github.com/google/uuid"

	"webmail/utils"
)

// Progress tracks upload completion as a percentage
type Progress struct {
	Total      int
	Completion int
}

// Attachment is a file attached to a message. While the upload is pending it
// lives in the mail's LoadingAttachments with only the client-side handle
// set; the id, filename, size and content type become meaningful once the
// backend accepts it. A failed upload leaves no trace.
type Attachment struct {
	// UploadID identifies the pending upload client-side, before the
	// backend assigns an id.
	UploadID string `json:"-"`

	ID          string `json:"id,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"contentType,omitempty"`

	Progress Progress `json:"-"`

	file        io.Reader
	pendingName string
	pendingSize int64
	pendingType string
}

// NewAttachment wraps a file for upload
func NewAttachment(filename, contentType string, size int64, file io.Reader) *Attachment {
	return &Attachment{
		UploadID:    uuid.NewString(),
		Progress:    Progress{Total: 100},
		file:        file,
		pendingName: filename,
		pendingSize: size,
		pendingType: contentType,
	}
}

// UploadAttachments uploads the given files to this message one by one. Each
// attachment moves through LoadingAttachments while pending; on success it
// joins Attachments with its server id, on failure it is dropped and the
// failure notified. The quota is refreshed after each accepted upload.
func (m *Mail) UploadAttachments(ctx context.Context, attachments ...*Attachment) {
	for _, att := range attachments {
		m.LoadingAttachments = append(m.LoadingAttachments, att)

		var uploaded struct {
			ID string `json:"id"`
		}
		err := m.cv.client.Upload(ctx, "message/"+m.ID+"/attachment", att.pendingName, att.pendingType, att.file, &uploaded, func(completion int) {
			att.Progress.Completion = completion
		})

		m.removeLoadingAttachment(att)

		if err != nil {
			m.cv.notify.Error(utils.UserMessage(err))
			continue
		}

		att.ID = uploaded.ID
		att.Filename = att.pendingName
		att.Size = att.pendingSize
		att.ContentType = att.pendingType
		m.Attachments = append(m.Attachments, att)

		if err := m.cv.Quota.Refresh(ctx); err != nil {
			m.cv.logger.Warn("quota refresh after upload: %v", err)
		}
	}
}

// DeleteAttachment removes an attachment locally and on the backend, then
// refreshes the quota.
func (m *Mail) DeleteAttachment(ctx context.Context, att *Attachment) error {
	for i, candidate := range m.Attachments {
		if candidate == att {
			m.Attachments = append(m.Attachments[:i], m.Attachments[i+1:]...)
			break
		}
	}

	if err := m.cv.client.Delete(ctx, "message/"+m.ID+"/attachment/"+att.ID); err != nil {
		return err
	}

	if err := m.cv.Quota.Refresh(ctx); err != nil {
		m.cv.logger.Warn("quota refresh after attachment delete: %v", err)
	}
	return nil
}

func (m *Mail) removeLoadingAttachment(att *Attachment) {
	for i, candidate := range m.LoadingAttachments {
		if candidate == att {
			m.LoadingAttachments = append(m.LoadingAttachments[:i], m.LoadingAttachments[i+1:]...)
			return
		}
	}
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"webmail/utils"
)

// ProgressFunc receives the upload completion percentage, 0 to 100.
type ProgressFunc func(completion int)

// Upload sends a file as a multipart "file" part and unmarshals the JSON
// response. The progress callback fires as the request body is consumed.
func (c *Client) Upload(ctx context.Context, path, filename, contentType string, file io.Reader, result interface{}, progress ProgressFunc) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return utils.TransportError("upload cancelled while rate limited", err)
		}
	}

	// The whole part is buffered first so the reported total covers the
	// multipart framing, not just the file bytes.
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("creating multipart part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("buffering upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing multipart writer: %w", err)
	}

	var body io.Reader = &buf
	if progress != nil {
		body = &progressReader{reader: &buf, total: int64(buf.Len()), progress: progress}
	}

	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("POST %s (multipart, %d bytes)", path, buf.Len())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return utils.TransportError(fmt.Sprintf("uploading to %s", path), err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return utils.TransportError(fmt.Sprintf("reading upload response of %s", path), readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(http.MethodPost, path, resp.StatusCode, respBody)
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling upload response from %s: %w", path, err)
	}
	return nil
}

// progressReader reports completion percentage as the request body is read.
type progressReader struct {
	reader   io.Reader
	total    int64
	read     int64
	progress ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.read += int64(n)
		if r.total > 0 {
			r.progress(int(r.read * 100 / r.total))
		}
	}
	return n, err
}

package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webmail/backendtest"
	"webmail/config"
	"webmail/utils"
)

func newTestClient(t *testing.T) (*Client, *backendtest.Server) {
	t.Helper()
	server := backendtest.New()
	cfg := &config.Config{}
	cfg.Backend.BaseURL = "http://portal.test"
	cfg.Backend.TimeoutSeconds = 5
	cfg.Session.Token = "session-token"

	cl := New(cfg, utils.NewLogger(utils.ERROR))
	cl.SetTransport(server.Transport())
	return cl, server
}

type rtFunc func(*http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestRequestCarriesTokenAndHeaders(t *testing.T) {
	cfg := &config.Config{}
	cfg.Backend.BaseURL = "http://portal.test/"
	cfg.Backend.TimeoutSeconds = 5
	cfg.Session.Token = "session-token"
	cl := New(cfg, utils.NewLogger(utils.ERROR))

	var captured *http.Request
	cl.SetTransport(rtFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		return &http.Response{StatusCode: 200, Body: http.NoBody, Header: http.Header{}}, nil
	}))

	require.NoError(t, cl.Post(context.Background(), "conversation/send", map[string]string{"subject": "x"}, nil))

	require.NotNil(t, captured)
	assert.Equal(t, "http://portal.test/conversation/send", captured.URL.String())
	assert.Equal(t, "Bearer session-token", captured.Header.Get("Authorization"))
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", captured.Header.Get("Accept"))
}

func TestServerErrorIsDecoded(t *testing.T) {
	cl, server := newTestClient(t)
	server.FailNext(403, "conversation.forbidden")

	err := cl.Get(context.Background(), "/conversation/folders/list", nil)
	require.Error(t, err)

	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 403, appErr.Code)
	assert.Equal(t, "conversation.forbidden", utils.UserMessage(err))
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	cl, _ := newTestClient(t)

	err := cl.Get(context.Background(), "/conversation/nope", nil)
	assert.True(t, utils.IsNotFound(err))
}

func TestTransportFailure(t *testing.T) {
	cfg := &config.Config{}
	cfg.Backend.BaseURL = "http://127.0.0.1:1"
	cfg.Backend.TimeoutSeconds = 1
	cl := New(cfg, utils.NewLogger(utils.ERROR))

	err := cl.Get(context.Background(), "/conversation/folders/list", nil)
	require.Error(t, err)

	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Zero(t, appErr.Code)
	assert.False(t, utils.IsNotFound(err))
}

func TestGetDecodesResponse(t *testing.T) {
	cl, server := newTestClient(t)
	server.AddFolder("Projects", "")

	var folders []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, cl.Get(context.Background(), "/conversation/folders/list", &folders))
	require.Len(t, folders, 1)
	assert.Equal(t, "Projects", folders[0].Name)
}

func TestUploadMultipart(t *testing.T) {
	cl, server := newTestClient(t)
	mailID := server.AddMail(&backendtest.MailRecord{Folder: "DRAFT", State: "DRAFT"})

	var completions []int
	var uploaded struct {
		ID string `json:"id"`
	}
	err := cl.Upload(context.Background(), "message/"+mailID+"/attachment", "notes.txt", "text/plain",
		strings.NewReader("hello world"), &uploaded, func(completion int) {
			completions = append(completions, completion)
		})
	require.NoError(t, err)
	assert.NotEmpty(t, uploaded.ID)

	record := server.Mails[mailID]
	require.Len(t, record.Attachments, 1)
	assert.Equal(t, "notes.txt", record.Attachments[0].Filename)
	assert.Equal(t, "text/plain", record.Attachments[0].ContentType)
	assert.Equal(t, int64(len("hello world")), record.Attachments[0].Size)

	require.NotEmpty(t, completions)
	assert.Equal(t, 100, completions[len(completions)-1])
}

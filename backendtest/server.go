// Package backendtest provides an in-process fake of the conversation
// backend for tests. The fake implements the HTTP contract with fiber and is
// mounted directly on the store's HTTP client as a RoundTripper, so no
// sockets are involved.
package backendtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// MailRecord is the fake's stored form of a message
type MailRecord struct {
	ID           string
	From         string
	To           []string
	Cc           []string
	Subject      string
	Body         string
	State        string
	Unread       bool
	Date         int64
	DisplayNames [][]string
	InReplyTo    string

	// Folder is where the record currently lives: a system folder name or a
	// user folder id. HomeFolder is the system folder move/root returns it
	// to; PrevFolder is where restore puts it back.
	Folder     string
	HomeFolder string
	PrevFolder string

	Attachments []AttachmentRecord
}

// AttachmentRecord is a stored attachment
type AttachmentRecord struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// FolderRecord is a stored user folder
type FolderRecord struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id"`
	Name     string `json:"name"`
	Trashed  bool   `json:"trashed"`
}

// Server is the fake backend. Exported fields are knobs tests set up front;
// counters record traffic for assertions.
type Server struct {
	app *fiber.App
	mu  sync.Mutex

	PageSize int
	MaxDepth int

	// Latency is added to every request, letting tests hold requests in
	// flight long enough to overlap deterministically.
	Latency time.Duration

	Mails      map[string]*MailRecord
	Folders    []*FolderRecord
	People     map[string]string // id -> display name, existence-probe data
	Visible    []map[string]interface{}
	Groups     []map[string]interface{}
	Preference string
	QuotaTotal int64
	QuotaUsed  int64

	SendInactive    []string
	SendUndelivered []string

	MaxDepthCalls int
	QuotaCalls    int
	ProbeCalls    int
	Requests      []string

	nextErr    *errorStub
	nextMailID int
	nextAttID  int
	nextFldID  int
}

type errorStub struct {
	status  int
	message string
}

// New creates a fake backend with empty state
func New() *Server {
	s := &Server{
		PageSize:   10,
		MaxDepth:   3,
		Mails:      make(map[string]*MailRecord),
		People:     make(map[string]string),
		QuotaTotal: 1 << 20,
	}
	// Immutable keeps params/query strings valid after the handler returns;
	// the fake stores them in records that outlive the request.
	s.app = fiber.New(fiber.Config{DisableStartupMessage: true, Immutable: true})
	s.routes()
	return s
}

// Transport mounts the fake on an http.Client
func (s *Server) Transport() http.RoundTripper {
	return roundTripper{app: s.app}
}

type roundTripper struct {
	app *fiber.App
}

func (t roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// fiber's Test serializes the request with the declared Content-Length;
	// bodies of unknown length must be buffered first or they are dropped.
	if req.Body != nil && req.Body != http.NoBody && req.ContentLength == 0 {
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(data))
		req.ContentLength = int64(len(data))
	}
	return t.app.Test(req, -1)
}

// FailNext makes the next request fail with a server-reported business error
func (s *Server) FailNext(status int, message string) {
	s.mu.Lock()
	s.nextErr = &errorStub{status: status, message: message}
	s.mu.Unlock()
}

// AddMail stores a message and returns its id
func (s *Server) AddMail(record *MailRecord) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		s.nextMailID++
		record.ID = fmt.Sprintf("mail-%d", s.nextMailID)
	}
	if record.HomeFolder == "" {
		record.HomeFolder = record.Folder
	}
	s.Mails[record.ID] = record
	return record.ID
}

// AddPerson registers a directory user for the existence probe
func (s *Server) AddPerson(id, name string) {
	s.mu.Lock()
	s.People[id] = name
	s.mu.Unlock()
}

// AddFolder stores a user folder and returns its id
func (s *Server) AddFolder(name, parentID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFldID++
	id := fmt.Sprintf("fld-%d", s.nextFldID)
	s.Folders = append(s.Folders, &FolderRecord{ID: id, ParentID: parentID, Name: name})
	return id
}

// MailsIn lists the ids currently stored in a folder, insertion order not
// guaranteed.
func (s *Server) MailsIn(folder string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, record := range s.Mails {
		if record.Folder == folder {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Server) routes() {
	s.app.Use(func(c *fiber.Ctx) error {
		s.mu.Lock()
		s.Requests = append(s.Requests, c.Method()+" "+c.OriginalURL())
		stub := s.nextErr
		s.nextErr = nil
		latency := s.Latency
		s.mu.Unlock()
		if latency > 0 {
			time.Sleep(latency)
		}
		if stub != nil {
			return c.Status(stub.status).JSON(fiber.Map{"error": stub.message})
		}
		return c.Next()
	})

	s.app.Get("/conversation/list/:folder", s.list)
	s.app.Get("/conversation/message/:id", s.message)
	s.app.Post("/conversation/draft", s.createDraft)
	s.app.Put("/conversation/draft/:id", s.updateDraft)
	s.app.Post("/conversation/send", s.send)
	s.app.Put("/conversation/trash", s.trash)
	s.app.Put("/conversation/restore", s.restore)
	s.app.Delete("/conversation/delete", s.delete)
	s.app.Delete("/conversation/emptyTrash", s.emptyTrash)
	s.app.Post("/conversation/toggleUnread", s.toggleUnread)
	s.app.Get("/conversation/count/:folder", s.count)
	s.app.Get("/conversation/folders/list", s.listFolders)
	s.app.Post("/conversation/folder", s.createFolder)
	s.app.Put("/conversation/folder/trash/:id", s.trashFolder)
	s.app.Put("/conversation/folder/restore/:id", s.restoreFolder)
	s.app.Put("/conversation/folder/:id", s.renameFolder)
	s.app.Delete("/conversation/folder/:id", s.deleteFolder)
	s.app.Put("/move/root", s.moveRoot)
	s.app.Put("/move/userfolder/:folderId", s.moveUserFolder)
	s.app.Get("/max-depth", s.maxDepth)
	s.app.Get("/userbook/preference/conversation", s.getPreference)
	s.app.Put("/userbook/preference/conversation", s.putPreference)
	s.app.Get("/userbook/api/person", s.person)
	s.app.Get("/workspace/quota/user/:id", s.quota)
	s.app.Get("/visible", s.visible)
	s.app.Post("/message/:id/attachment", s.postAttachment)
	s.app.Delete("/message/:id/attachment/:attId", s.deleteAttachment)
}

func (s *Server) summary(r *MailRecord) fiber.Map {
	return fiber.Map{
		"id":           r.ID,
		"from":         r.From,
		"to":           r.To,
		"cc":           r.Cc,
		"subject":      r.Subject,
		"state":        r.State,
		"unread":       r.Unread,
		"date":         r.Date,
		"displayNames": r.DisplayNames,
	}
}

func (s *Server) list(c *fiber.Ctx) error {
	folder := c.Params("folder")
	page, _ := strconv.Atoi(c.Query("page", "0"))
	unreadOnly := c.Query("unread") == "true"
	search := c.Query("search")

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*MailRecord
	for _, record := range s.Mails {
		if record.Folder != folder {
			continue
		}
		if unreadOnly && !record.Unread {
			continue
		}
		if search != "" && !strings.Contains(record.Subject, search) && !strings.Contains(record.Body, search) {
			continue
		}
		matched = append(matched, record)
	}
	// Newest first, matching the backend's ordering
	sortByDateDesc(matched)

	start := page * s.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + s.PageSize
	if end > len(matched) {
		end = len(matched)
	}

	result := make([]fiber.Map, 0, end-start)
	for _, record := range matched[start:end] {
		result = append(result, s.summary(record))
	}
	return c.JSON(result)
}

func (s *Server) message(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Mails[c.Params("id")]
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "conversation.notfound"})
	}
	// Fetching a message marks it read, like the real backend
	record.Unread = false
	detail := s.summary(record)
	detail["body"] = record.Body
	detail["attachments"] = record.Attachments
	return c.JSON(detail)
}

type draftBody struct {
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	To      []string `json:"to"`
	Cc      []string `json:"cc"`
}

func (s *Server) createDraft(c *fiber.Ctx) error {
	var body draftBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMailID++
	id := fmt.Sprintf("mail-%d", s.nextMailID)
	s.Mails[id] = &MailRecord{
		ID:         id,
		Subject:    body.Subject,
		Body:       body.Body,
		To:         body.To,
		Cc:         body.Cc,
		State:      "DRAFT",
		Folder:     "DRAFT",
		HomeFolder: "DRAFT",
		InReplyTo:  c.Query("In-Reply-To"),
	}
	return c.JSON(fiber.Map{"id": id})
}

func (s *Server) updateDraft(c *fiber.Ctx) error {
	var body draftBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Mails[c.Params("id")]
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "conversation.notfound"})
	}
	record.Subject = body.Subject
	record.Body = body.Body
	record.To = body.To
	record.Cc = body.Cc
	return c.JSON(fiber.Map{"id": record.ID})
}

func (s *Server) send(c *fiber.Ctx) error {
	var body draftBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.Query("id")
	record, ok := s.Mails[id]
	if !ok {
		s.nextMailID++
		id = fmt.Sprintf("mail-%d", s.nextMailID)
		record = &MailRecord{ID: id}
		s.Mails[id] = record
	}
	record.Subject = body.Subject
	record.Body = body.Body
	record.To = body.To
	record.Cc = body.Cc
	record.State = "SENT"
	record.Folder = "OUTBOX"
	record.HomeFolder = "OUTBOX"
	record.InReplyTo = c.Query("In-Reply-To")

	sent := len(body.To) + len(body.Cc) - len(s.SendUndelivered) - len(s.SendInactive)
	if sent < 0 {
		sent = 0
	}
	return c.JSON(fiber.Map{
		"id":          id,
		"sent":        sent,
		"inactive":    orEmpty(s.SendInactive),
		"undelivered": orEmpty(s.SendUndelivered),
	})
}

func (s *Server) trash(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range queryIDs(c) {
		if record, ok := s.Mails[id]; ok {
			record.PrevFolder = record.Folder
			record.Folder = "TRASH"
		}
	}
	return c.SendStatus(200)
}

func (s *Server) restore(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range queryIDs(c) {
		if record, ok := s.Mails[id]; ok && record.Folder == "TRASH" {
			record.Folder = record.PrevFolder
			record.PrevFolder = ""
		}
	}
	return c.SendStatus(200)
}

func (s *Server) delete(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range queryIDs(c) {
		record, ok := s.Mails[id]
		if !ok {
			continue
		}
		if record.Folder != "TRASH" {
			return c.Status(400).JSON(fiber.Map{"error": "conversation.delete.not.trashed"})
		}
		delete(s.Mails, id)
	}
	return c.SendStatus(200)
}

func (s *Server) emptyTrash(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, record := range s.Mails {
		if record.Folder == "TRASH" {
			delete(s.Mails, id)
		}
	}
	return c.SendStatus(200)
}

func (s *Server) toggleUnread(c *fiber.Ctx) error {
	unread := c.Query("unread") == "true"
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range queryIDs(c) {
		if record, ok := s.Mails[id]; ok {
			record.Unread = unread
		}
	}
	return c.SendStatus(200)
}

func (s *Server) count(c *fiber.Ctx) error {
	folder := c.Params("folder")
	unreadOnly := c.Query("unread") == "true"
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, record := range s.Mails {
		if record.Folder == folder && (!unreadOnly || record.Unread) {
			count++
		}
	}
	return c.JSON(fiber.Map{"count": count})
}

func (s *Server) listFolders(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Folders == nil {
		return c.JSON([]*FolderRecord{})
	}
	return c.JSON(s.Folders)
}

func (s *Server) createFolder(c *fiber.Ctx) error {
	var body struct {
		Name     string `json:"name"`
		ParentID string `json:"parentId"`
	}
	if err := c.BodyParser(&body); err != nil || body.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "conversation.folder.name"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFldID++
	id := fmt.Sprintf("fld-%d", s.nextFldID)
	s.Folders = append(s.Folders, &FolderRecord{ID: id, ParentID: body.ParentID, Name: body.Name})
	return c.JSON(fiber.Map{"id": id})
}

func (s *Server) findFolder(id string) *FolderRecord {
	for _, folder := range s.Folders {
		if folder.ID == id {
			return folder
		}
	}
	return nil
}

func (s *Server) renameFolder(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	folder := s.findFolder(c.Params("id"))
	if folder == nil {
		return c.Status(404).JSON(fiber.Map{"error": "conversation.folder.notfound"})
	}
	folder.Name = body.Name
	return c.SendStatus(200)
}

func (s *Server) trashFolder(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	folder := s.findFolder(c.Params("id"))
	if folder == nil {
		return c.Status(404).JSON(fiber.Map{"error": "conversation.folder.notfound"})
	}
	folder.Trashed = true
	return c.SendStatus(200)
}

func (s *Server) restoreFolder(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	folder := s.findFolder(c.Params("id"))
	if folder == nil {
		return c.Status(404).JSON(fiber.Map{"error": "conversation.folder.notfound"})
	}
	folder.Trashed = false
	return c.SendStatus(200)
}

func (s *Server) deleteFolder(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Params("id")
	for i, folder := range s.Folders {
		if folder.ID == id {
			s.Folders = append(s.Folders[:i], s.Folders[i+1:]...)
			return c.SendStatus(200)
		}
	}
	return c.Status(404).JSON(fiber.Map{"error": "conversation.folder.notfound"})
}

func (s *Server) moveRoot(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range queryIDs(c) {
		if record, ok := s.Mails[id]; ok {
			record.Folder = record.HomeFolder
		}
	}
	return c.SendStatus(200)
}

func (s *Server) moveUserFolder(c *fiber.Ctx) error {
	folderID := c.Params("folderId")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findFolder(folderID) == nil {
		return c.Status(404).JSON(fiber.Map{"error": "conversation.folder.notfound"})
	}
	for _, id := range queryIDs(c) {
		if record, ok := s.Mails[id]; ok {
			record.Folder = folderID
		}
	}
	return c.SendStatus(200)
}

func (s *Server) maxDepth(c *fiber.Ctx) error {
	s.mu.Lock()
	s.MaxDepthCalls++
	depth := s.MaxDepth
	s.mu.Unlock()
	return c.JSON(fiber.Map{"max-depth": strconv.Itoa(depth)})
}

func (s *Server) getPreference(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(fiber.Map{"preference": s.Preference})
}

func (s *Server) putPreference(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Preference = string(c.Body())
	return c.SendStatus(200)
}

func (s *Server) person(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProbeCalls++
	id := c.Query("id")
	result := []fiber.Map{}
	if name, ok := s.People[id]; ok {
		result = append(result, fiber.Map{"id": id, "displayName": name})
	}
	return c.JSON(fiber.Map{"result": result})
}

func (s *Server) quota(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QuotaCalls++
	return c.JSON(fiber.Map{"quota": s.QuotaTotal, "storage": s.QuotaUsed})
}

func (s *Server) visible(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(fiber.Map{"users": orEmptyMaps(s.Visible), "groups": orEmptyMaps(s.Groups)})
}

func (s *Server) postAttachment(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "conversation.attachment.missing"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Mails[c.Params("id")]
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "conversation.notfound"})
	}
	s.nextAttID++
	att := AttachmentRecord{
		ID:          fmt.Sprintf("att-%d", s.nextAttID),
		Filename:    file.Filename,
		Size:        file.Size,
		ContentType: file.Header.Get("Content-Type"),
	}
	record.Attachments = append(record.Attachments, att)
	s.QuotaUsed += file.Size
	return c.JSON(fiber.Map{"id": att.ID})
}

func (s *Server) deleteAttachment(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Mails[c.Params("id")]
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "conversation.notfound"})
	}
	attID := c.Params("attId")
	for i, att := range record.Attachments {
		if att.ID == attID {
			record.Attachments = append(record.Attachments[:i], record.Attachments[i+1:]...)
			s.QuotaUsed -= att.Size
			return c.SendStatus(200)
		}
	}
	return c.Status(404).JSON(fiber.Map{"error": "conversation.attachment.notfound"})
}

func queryIDs(c *fiber.Ctx) []string {
	raw := c.Context().QueryArgs().PeekMulti("id")
	ids := make([]string, 0, len(raw))
	for _, b := range raw {
		ids = append(ids, string(b))
	}
	return ids
}

func sortByDateDesc(records []*MailRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date > records[j].Date
		}
		return records[i].ID < records[j].ID
	})
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func orEmptyMaps(values []map[string]interface{}) []map[string]interface{} {
	if values == nil {
		return []map[string]interface{}{}
	}
	return values
}

// MarshalPreference JSON-encodes a preference object into the string form
// the backend stores.
func MarshalPreference(v interface{}) string {
	data, _ := json.Marshal(v)
	return string(data)
}

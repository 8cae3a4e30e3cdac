package conversation

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"webmail/client"
	"webmail/models"
	"webmail/utils"
)

// probeTTL bounds how long a directory existence-probe result is reused
const probeTTL = time.Minute

// Preference holds the user's signature settings
type Preference struct {
	UseSignature bool   `json:"useSignature"`
	Signature    string `json:"signature"`
}

// Conversation is the session-scoped store aggregate: system folders, user
// folders, visible users, preferences and quota. One instance is built at
// session start and passed to every consumer; there is no package-level
// instance. Apart from the request guards below, an instance is meant to be
// driven from a single goroutine.
type Conversation struct {
	client  *client.Client
	session *models.Session
	trans   utils.Translator
	notify  utils.Notifier
	logger  *utils.Logger

	Folders        *SystemFolders
	UserFolders    *UserFolders
	Users          *Users
	Quota          *Quota
	Preference     Preference
	MaxFolderDepth int

	currentFolder Folder

	// syncGroup makes re-entrant Sync calls share one run; openGroup
	// coalesces concurrent opens of the same message.
	syncGroup  singleflight.Group
	openGroup  singleflight.Group
	probeCache *utils.MemoryCache
}

// New builds the store for one session. The translator and notifier are the
// two capabilities the store needs from its host; pass a LogNotifier for
// headless use.
func New(cl *client.Client, session *models.Session, trans utils.Translator, notify utils.Notifier, logger *utils.Logger) *Conversation {
	c := &Conversation{
		client:     cl,
		session:    session,
		trans:      trans,
		notify:     notify,
		logger:     logger.WithField("component", "conversation"),
		probeCache: utils.NewMemoryCache(),
	}
	c.Folders = newSystemFolders(c)
	c.UserFolders = newUserFolders(c)
	c.Users = newUsers(c)
	c.Quota = newQuota(c)
	c.currentFolder = c.Folders.Inbox
	return c
}

// Session returns the connected user's identity
func (c *Conversation) Session() *models.Session {
	return c.session
}

// CurrentFolder is the folder the user is viewing; the inbox until changed.
// Mail classification and unread bookkeeping depend on it.
func (c *Conversation) CurrentFolder() Folder {
	return c.currentFolder
}

// SetCurrentFolder switches the viewed folder
func (c *Conversation) SetCurrentFolder(folder Folder) {
	c.currentFolder = folder
}

// Sync runs the session-start loading sequence: folder depth limit,
// signature preference, the user folder tree, the inbox unread count and the
// quota. Concurrent and re-entrant calls share a single run.
func (c *Conversation) Sync(ctx context.Context) error {
	_, err, _ := c.syncGroup.Do("sync", func() (interface{}, error) {
		return nil, c.sync(ctx)
	})
	return err
}

func (c *Conversation) sync(ctx context.Context) error {
	var depth struct {
		MaxDepth string `json:"max-depth"`
	}
	if err := c.client.Get(ctx, "max-depth", &depth); err != nil {
		return err
	}
	if parsed, err := strconv.Atoi(depth.MaxDepth); err == nil {
		c.MaxFolderDepth = parsed
	} else {
		c.logger.Warn("unparseable max-depth %q", depth.MaxDepth)
	}

	c.GetPreference(ctx)

	if err := c.UserFolders.Sync(ctx); err != nil {
		return err
	}
	if err := c.Folders.Inbox.CountUnread(ctx); err != nil {
		return err
	}
	return c.Quota.Refresh(ctx)
}

// GetPreference loads the signature preference. The payload is a JSON object
// encoded inside a string field. Failures are notified and leave the
// defaults in place.
func (c *Conversation) GetPreference(ctx context.Context) {
	var response struct {
		Preference string `json:"preference"`
	}
	if err := c.client.Get(ctx, "/userbook/preference/conversation", &response); err != nil {
		c.notify.Error(utils.UserMessage(err))
		return
	}
	if response.Preference == "" {
		return
	}
	if err := json.Unmarshal([]byte(response.Preference), &c.Preference); err != nil {
		c.logger.Warn("malformed conversation preference: %v", err)
	}
}

// PutPreference saves the signature preference
func (c *Conversation) PutPreference(ctx context.Context) error {
	return c.client.Put(ctx, "/userbook/preference/conversation", c.Preference, nil)
}

// userExists probes the directory for a referenced user. A missing user is
// an expected outcome, not an error. Results are cached briefly.
func (c *Conversation) userExists(ctx context.Context, id string) (bool, error) {
	if cached, ok := c.probeCache.Get("probe:" + id); ok {
		return cached.(bool), nil
	}

	var response struct {
		Result []json.RawMessage `json:"result"`
	}
	err := c.client.Get(ctx, "/userbook/api/person?id="+id, &response)
	if utils.IsNotFound(err) {
		c.probeCache.Set("probe:"+id, false, probeTTL)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	exists := len(response.Result) > 0
	c.probeCache.Set("probe:"+id, exists, probeTTL)
	return exists, nil
}

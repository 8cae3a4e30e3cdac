package conversation

import (
	"context"

	"webmail/models"
)

// Users is the registry of visible recipients: the users and groups the
// session user is allowed to address. Backs the composer's recipient picker.
type Users struct {
	cv *Conversation

	selection *models.Selection[*models.User]
	Groups    []*models.User
}

func newUsers(cv *Conversation) *Users {
	return &Users{
		cv:        cv,
		selection: models.NewSelection[*models.User](nil),
	}
}

// Selection exposes the visible users list
func (u *Users) Selection() *models.Selection[*models.User] {
	return u.selection
}

// All returns the visible users
func (u *Users) All() []*models.User {
	return u.selection.All()
}

// Sync reloads the visible users and groups
func (u *Users) Sync(ctx context.Context) error {
	var response struct {
		Users  []*models.User `json:"users"`
		Groups []*models.User `json:"groups"`
	}
	if err := u.cv.client.Get(ctx, "visible", &response); err != nil {
		return err
	}

	u.selection.Clear()
	for _, user := range response.Users {
		u.selection.Push(user)
	}
	u.Groups = response.Groups
	return nil
}

// FindUser looks a visible user up by id
func (u *Users) FindUser(id string) (*models.User, bool) {
	for _, user := range u.selection.All() {
		if user.ID == id {
			return user, true
		}
	}
	for _, group := range u.Groups {
		if group.ID == id {
			return group, true
		}
	}
	return nil, false
}

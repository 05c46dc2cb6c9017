package hub

import (
	"context"
	"net/url"
	"strconv"
)

type User struct {
	UserName  string `json:"userName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Active    bool   `json:"active"`
	Meta      Meta   `json:"_meta"`
}

type LastLogin struct {
	LastLogin string `json:"lastLogin"`
}

type DormantUser struct {
	UserName  string `json:"username"`
	LastLogin string `json:"lastLogin"`
}

func (c *Client) Users(ctx context.Context) ([]User, error) {
	return getItems[User](ctx, c, "/api/users", query{})
}

// LastLogin returns the last login time of a user, "" when the user never
// logged in.
func (c *Client) LastLogin(ctx context.Context, user User) (string, error) {
	href, err := user.Meta.LinkOf("last-login")
	if err != nil {
		return "", err
	}

	ll, err := getJSON[LastLogin](ctx, c, href, AcceptUser4)
	if err != nil {
		return "", err
	}

	return ll.LastLogin, nil
}

// DormantUsers lists users without a login in the last days, oldest login first.
func (c *Client) DormantUsers(ctx context.Context, days int) ([]DormantUser, error) {
	params := url.Values{
		"sinceDays": []string{strconv.Itoa(days)},
		"sort":      []string{"lastlogindate asc"},
	}

	return getItems[DormantUser](ctx, c, "/api/dormant-users", query{params: params, accept: AcceptUser4})
}

package backend

import (
	"context"
	"net/http"
	"net/url"
)

// ListAdmins returns every admin account.
func (c *Client) ListAdmins(ctx context.Context) ([]Admin, error) {
	resp, err := c.send(c.request(ctx), http.MethodGet, "/admin/users")
	if err != nil {
		return nil, err
	}
	return listOf[Admin](resp.Body())
}

// CreateAdmin creates an admin account and returns its ID.
func (c *Client) CreateAdmin(ctx context.Context, in AdminInput) (string, error) {
	resp, err := c.send(c.request(ctx).SetBody(in), http.MethodPost, "/admin/users")
	if err != nil {
		return "", err
	}
	return createdID(resp.Body())
}

// UpdateAdmin edits an admin account. An empty password keeps the current one.
func (c *Client) UpdateAdmin(ctx context.Context, id string, in AdminInput) error {
	_, err := c.send(c.request(ctx).SetBody(in), http.MethodPut, "/admin/users/"+url.PathEscape(id))
	return err
}

// DeleteAdmin removes an admin account.
func (c *Client) DeleteAdmin(ctx context.Context, id string) error {
	_, err := c.send(c.request(ctx), http.MethodDelete, "/admin/users/"+url.PathEscape(id))
	return err
}

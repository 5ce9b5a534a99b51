package backend

import (
	"context"
	"net/http"
	"net/url"
)

func centerPath(id string) string {
	return "/admin/modular-centers/" + url.PathEscape(id)
}

// ListCenters returns every modular center.
func (c *Client) ListCenters(ctx context.Context) ([]Center, error) {
	resp, err := c.send(c.request(ctx), http.MethodGet, "/admin/modular-centers")
	if err != nil {
		return nil, err
	}
	return listOf[Center](resp.Body())
}

// GetCenter returns one center.
func (c *Client) GetCenter(ctx context.Context, id string) (Center, error) {
	resp, err := c.send(c.request(ctx), http.MethodGet, centerPath(id))
	if err != nil {
		return Center{}, err
	}
	return oneOf[Center](resp.Body())
}

// CreateCenter creates a center and returns its ID.
func (c *Client) CreateCenter(ctx context.Context, in CenterInput) (string, error) {
	resp, err := c.send(c.request(ctx).SetBody(in), http.MethodPost, "/admin/modular-centers")
	if err != nil {
		return "", err
	}
	return createdID(resp.Body())
}

// UpdateCenter edits a center.
func (c *Client) UpdateCenter(ctx context.Context, id string, in CenterInput) error {
	_, err := c.send(c.request(ctx).SetBody(in), http.MethodPut, centerPath(id))
	return err
}

// DeleteCenter removes a center.
func (c *Client) DeleteCenter(ctx context.Context, id string) error {
	_, err := c.send(c.request(ctx), http.MethodDelete, centerPath(id))
	return err
}

// ListCenterImages returns the images of a center.
func (c *Client) ListCenterImages(ctx context.Context, centerID string) ([]CenterImage, error) {
	resp, err := c.send(c.request(ctx), http.MethodGet, centerPath(centerID)+"/images")
	if err != nil {
		return nil, err
	}
	return listOf[CenterImage](resp.Body())
}

// UploadCenterImage posts one image file with its metadata to a center.
func (c *Client) UploadCenterImage(ctx context.Context, centerID string, file Upload, meta CenterImageMeta) (CenterImage, error) {
	req := c.request(ctx).
		SetMultipartField("file", file.Name, file.ContentType, file.Reader).
		SetMultipartFormData(meta.formData())
	resp, err := c.send(req, http.MethodPost, centerPath(centerID)+"/images")
	if err != nil {
		return CenterImage{}, err
	}
	if len(resp.Body()) == 0 {
		return CenterImage{}, nil
	}
	return oneOf[CenterImage](resp.Body())
}

// UpdateCenterImage edits the metadata of a center image.
func (c *Client) UpdateCenterImage(ctx context.Context, centerID, imageID string, in CenterImageUpdate) error {
	_, err := c.send(c.request(ctx).SetBody(in), http.MethodPut, centerPath(centerID)+"/images/"+url.PathEscape(imageID))
	return err
}

// DeleteCenterImage removes a center image.
func (c *Client) DeleteCenterImage(ctx context.Context, centerID, imageID string) error {
	_, err := c.send(c.request(ctx), http.MethodDelete, centerPath(centerID)+"/images/"+url.PathEscape(imageID))
	return err
}

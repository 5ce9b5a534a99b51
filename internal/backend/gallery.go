package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// ListGalleryGroups returns the albums of a product type (MODOOLA when empty).
func (c *Client) ListGalleryGroups(ctx context.Context, productType string) ([]GalleryGroup, error) {
	if productType == "" {
		productType = string(ProductModoola)
	}
	req := c.request(ctx).SetQueryParam("productType", productType)
	resp, err := c.send(req, http.MethodGet, "/admin/gallery-groups")
	if err != nil {
		return nil, err
	}
	return listOf[GalleryGroup](resp.Body())
}

// CreateGalleryGroup creates an album and returns its ID.
func (c *Client) CreateGalleryGroup(ctx context.Context, in GalleryGroupInput) (string, error) {
	if in.Order == nil {
		zero := 0
		in.Order = &zero
	}
	resp, err := c.send(c.request(ctx).SetBody(in), http.MethodPost, "/admin/gallery-groups")
	if err != nil {
		return "", err
	}
	return createdID(resp.Body())
}

// UpdateGalleryGroup replaces an album's title and description.
func (c *Client) UpdateGalleryGroup(ctx context.Context, id string, in GalleryGroupInput) error {
	_, err := c.send(c.request(ctx).SetBody(in), http.MethodPut, "/admin/gallery-groups/"+url.PathEscape(id))
	return err
}

// DeleteGalleryGroup removes an album.
func (c *Client) DeleteGalleryGroup(ctx context.Context, id string) error {
	_, err := c.send(c.request(ctx), http.MethodDelete, "/admin/gallery-groups/"+url.PathEscape(id))
	return err
}

// ListGalleryImages returns the images of an album.
func (c *Client) ListGalleryImages(ctx context.Context, groupID string) ([]GalleryImage, error) {
	req := c.request(ctx).SetQueryParam("groupId", groupID)
	resp, err := c.send(req, http.MethodGet, "/admin/gallery")
	if err != nil {
		return nil, err
	}
	return listOf[GalleryImage](resp.Body())
}

// CreateGalleryImage links an uploaded image URL to an album.
func (c *Client) CreateGalleryImage(ctx context.Context, in GalleryImageInput) (string, error) {
	resp, err := c.send(c.request(ctx).SetBody(in), http.MethodPost, "/admin/gallery")
	if err != nil {
		return "", err
	}
	return createdID(resp.Body())
}

// UpdateGalleryImage edits a gallery image.
func (c *Client) UpdateGalleryImage(ctx context.Context, id string, in GalleryImageInput) error {
	_, err := c.send(c.request(ctx).SetBody(in), http.MethodPut, "/admin/gallery/"+url.PathEscape(id))
	return err
}

// DeleteGalleryImage removes a gallery image.
func (c *Client) DeleteGalleryImage(ctx context.Context, id string) error {
	_, err := c.send(c.request(ctx), http.MethodDelete, "/admin/gallery/"+url.PathEscape(id))
	return err
}

// ReorderGalleryImages persists a new image order.
func (c *Client) ReorderGalleryImages(ctx context.Context, items []ReorderItem) error {
	_, err := c.send(c.request(ctx).SetBody(items), http.MethodPatch, "/admin/gallery/reorder")
	return err
}

// UploadGalleryFiles stores files through /upload/gallery and returns their URLs.
func (c *Client) UploadGalleryFiles(ctx context.Context, files ...Upload) ([]UploadedFile, error) {
	fields := make([]*resty.MultipartField, 0, len(files))
	for _, f := range files {
		fields = append(fields, &resty.MultipartField{
			Param:       "files",
			FileName:    f.Name,
			ContentType: f.ContentType,
			Reader:      f.Reader,
		})
	}
	resp, err := c.send(c.request(ctx).SetMultipartFields(fields...), http.MethodPost, "/upload/gallery")
	if err != nil {
		return nil, err
	}
	return uploadedFiles(resp.Body())
}

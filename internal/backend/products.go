package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// ListProducts returns every product.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	resp, err := c.send(c.request(ctx), http.MethodGet, "/admin/products")
	if err != nil {
		return nil, err
	}
	return listOf[Product](resp.Body())
}

// GetProduct returns one product.
func (c *Client) GetProduct(ctx context.Context, id string) (Product, error) {
	resp, err := c.send(c.request(ctx), http.MethodGet, "/admin/products/"+url.PathEscape(id))
	if err != nil {
		return Product{}, err
	}
	return oneOf[Product](resp.Body())
}

// CreateProduct creates a product from a multipart form and returns its ID.
func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (string, error) {
	resp, err := c.send(c.productRequest(ctx, in), http.MethodPost, "/admin/products")
	if err != nil {
		return "", err
	}
	return createdID(resp.Body())
}

// UpdateProduct replaces a product, including its full image list.
func (c *Client) UpdateProduct(ctx context.Context, id string, in ProductInput) error {
	_, err := c.send(c.productRequest(ctx, in), http.MethodPut, "/admin/products/"+url.PathEscape(id))
	return err
}

// DeleteProduct removes a product.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	_, err := c.send(c.request(ctx), http.MethodDelete, "/admin/products/"+url.PathEscape(id))
	return err
}

func (c *Client) productRequest(ctx context.Context, in ProductInput) *resty.Request {
	req := c.request(ctx).SetMultipartFormData(map[string]string{
		"slug":        in.Slug,
		"title":       in.Title,
		"description": in.Description,
	})
	if len(in.Images) > 0 {
		req.SetFormDataFromValues(url.Values{"images[]": in.Images})
	}
	return req
}

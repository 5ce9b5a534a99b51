package backend

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"
)

// ID is a record identifier that the API may encode as a string or a number.
type ID string

// UnmarshalJSON accepts "abc", 42 and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Role is an admin user role.
type Role string

const (
	RoleSuperAdmin    Role = "SUPER_ADMIN"
	RoleGalleryAdmin  Role = "GALLERY_ADMIN"
	RoleContactsAdmin Role = "CONTACTS_ADMIN"
)

// Roles lists every assignable role.
var Roles = []Role{RoleSuperAdmin, RoleGalleryAdmin, RoleContactsAdmin}

// ProductType is a product slug and gallery group product type.
type ProductType string

const (
	ProductModoola         ProductType = "MODOOLA"
	ProductMachineExchange ProductType = "MACHINE_EXCHANGE"
	ProductTitaniumLaser   ProductType = "TITANIUM_LASER"
)

// ProductTypes lists every product slug.
var ProductTypes = []ProductType{ProductModoola, ProductMachineExchange, ProductTitaniumLaser}

// Admin is an administrator account.
type Admin struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// LoginResult is the outcome of a successful sign in.
type LoginResult struct {
	Token string
	Admin Admin
}

// GalleryGroup is an album.
type GalleryGroup struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	ProductType string `json:"productType,omitempty"`
}

// GalleryGroupInput is the create/update payload of an album.
type GalleryGroupInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Order       *int   `json:"order,omitempty"`
	ProductType string `json:"productType,omitempty"`
}

// GalleryImage is one image linked to an album.
type GalleryImage struct {
	ID          ID     `json:"id"`
	ImageURL    string `json:"imageUrl"`
	Caption     string `json:"caption"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	GroupID     ID     `json:"groupId"`
}

// GalleryImageInput is the create/update payload of a gallery image.
type GalleryImageInput struct {
	ImageURL    string `json:"imageUrl"`
	Caption     string `json:"caption"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	GroupID     string `json:"groupId,omitempty"`
}

// ReorderItem assigns a new order to a gallery image.
type ReorderItem struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// Product is a catalogue entry.
type Product struct {
	ID          ID       `json:"id"`
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
}

// ProductInput is the multipart payload of a product.
type ProductInput struct {
	Slug        string
	Title       string
	Description string
	Images      []string
}

// Center is a modular training center.
type Center struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Order       *int   `json:"order,omitempty"`
	ImageURL    string `json:"imageUrl"`
}

// CenterInput is the create/update payload of a center.
type CenterInput struct {
	Title       string `json:"title"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// CenterImage is an image attached to a center.
type CenterImage struct {
	ID       ID     `json:"id"`
	ImageURL string `json:"imageUrl"`
	Caption  string `json:"caption"`
	Type     string `json:"type"`
	Order    int    `json:"order"`
	IsActive bool   `json:"isActive"`
}

// CenterImageMeta accompanies a center image upload.
type CenterImageMeta struct {
	Caption  string
	Type     string
	Order    int
	IsActive bool
}

func (m CenterImageMeta) formData() map[string]string {
	return map[string]string{
		"caption":  m.Caption,
		"type":     m.Type,
		"order":    strconv.Itoa(m.Order),
		"isActive": strconv.FormatBool(m.IsActive),
	}
}

// CenterImageUpdate is the JSON payload for editing a center image.
type CenterImageUpdate struct {
	Caption  string `json:"caption"`
	Type     string `json:"type"`
	Order    int    `json:"order"`
	IsActive bool   `json:"isActive"`
}

// AdminInput is the create/update payload of an admin account.
type AdminInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Role     Role   `json:"role"`
}

// Upload is one file sent in a multipart request.
type Upload struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// UploadedFile is a stored file reported by /upload/gallery.
type UploadedFile struct {
	URL string
}

// createdID reads the identifier of a freshly created record from id, _id or
// data.id, or from a bare JSON string body.
func createdID(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", nil
	}
	if body[0] == '"' {
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return "", ErrMalformedResponse
		}
		return s, nil
	}
	var envelope struct {
		ID   ID `json:"id"`
		OID  ID `json:"_id"`
		Data *struct {
			ID  ID `json:"id"`
			OID ID `json:"_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", ErrMalformedResponse
	}
	switch {
	case envelope.ID != "":
		return envelope.ID.String(), nil
	case envelope.OID != "":
		return envelope.OID.String(), nil
	case envelope.Data != nil && envelope.Data.ID != "":
		return envelope.Data.ID.String(), nil
	case envelope.Data != nil && envelope.Data.OID != "":
		return envelope.Data.OID.String(), nil
	}
	return "", nil
}

// uploadedFiles accepts an array or a single item, where each item is a URL
// string or an object carrying url or path.
func uploadedFiles(body []byte) ([]UploadedFile, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrMalformedResponse
	}
	var items []json.RawMessage
	if body[0] == '[' {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, ErrMalformedResponse
		}
	} else {
		items = []json.RawMessage{body}
	}
	out := make([]UploadedFile, 0, len(items))
	for _, raw := range items {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, UploadedFile{URL: s})
			}
			continue
		}
		var obj struct {
			URL  string `json:"url"`
			Path string `json:"path"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, ErrMalformedResponse
		}
		switch {
		case obj.URL != "":
			out = append(out, UploadedFile{URL: obj.URL})
		case obj.Path != "":
			out = append(out, UploadedFile{URL: obj.Path})
		}
	}
	return out, nil
}

// listOf decodes either a bare array or an object wrapping it in data.
func listOf[T any](body []byte) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || string(body) == "null" {
		return nil, nil
	}
	var out []T
	if body[0] == '[' {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, ErrMalformedResponse
		}
		return out, nil
	}
	var envelope struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, ErrMalformedResponse
	}
	return envelope.Data, nil
}

// oneOf decodes an object, optionally wrapped in data.
func oneOf[T any](body []byte) (T, error) {
	var out T
	body = bytes.TrimSpace(body)
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return out, ErrMalformedResponse
	}
	if len(envelope.Data) > 0 && envelope.Data[0] == '{' {
		body = envelope.Data
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, ErrMalformedResponse
	}
	return out, nil
}

package gallery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/machineskills/console/internal/backend"
	"github.com/machineskills/console/internal/drafts"
	"github.com/machineskills/console/internal/media"
)

// API is the part of the backend client used by the gallery.
type API interface {
	ListGalleryGroups(ctx context.Context, productType string) ([]backend.GalleryGroup, error)
	CreateGalleryGroup(ctx context.Context, in backend.GalleryGroupInput) (string, error)
	UpdateGalleryGroup(ctx context.Context, id string, in backend.GalleryGroupInput) error
	DeleteGalleryGroup(ctx context.Context, id string) error
	ListGalleryImages(ctx context.Context, groupID string) ([]backend.GalleryImage, error)
	CreateGalleryImage(ctx context.Context, in backend.GalleryImageInput) (string, error)
	DeleteGalleryImage(ctx context.Context, id string) error
	ReorderGalleryImages(ctx context.Context, items []backend.ReorderItem) error
	UploadGalleryFiles(ctx context.Context, files ...backend.Upload) ([]backend.UploadedFile, error)
}

type albumForm struct {
	Title       string `validate:"required,max=200"`
	Description string `validate:"max=2000"`
	ProductType string `validate:"required,oneof=MODOOLA MACHINE_EXCHANGE TITANIUM_LASER"`
}

func albumFormFrom(fields media.Fields) albumForm {
	return albumForm{
		Title:       fields.Get("title"),
		Description: fields.Get("description"),
		ProductType: fields.Get("productType"),
	}
}

// albumEntity plugs albums into the attachment form controller.
type albumEntity struct {
	api      API
	validate *validator.Validate
}

func (albumEntity) Kind() string         { return "album" }
func (albumEntity) Label() string        { return "Album" }
func (albumEntity) BasePath() string     { return "/gallery" }
func (albumEntity) FormTemplate() string { return "pages/gallery/form.html" }

func (albumEntity) ParseFields(r *http.Request) media.Fields {
	productType := r.PostFormValue("productType")
	if productType == "" {
		productType = string(backend.ProductModoola)
	}
	return media.Fields{
		"title":       strings.TrimSpace(r.PostFormValue("title")),
		"description": strings.TrimSpace(r.PostFormValue("description")),
		"productType": productType,
	}
}

func (e albumEntity) Validate(fields media.Fields) map[string]string {
	errs := map[string]string{}
	err := e.validate.Struct(albumFormFrom(fields))
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Field() {
			case "Title":
				errs["title"] = "Title is required"
			case "ProductType":
				errs["productType"] = "Choose a product type"
			default:
				errs[strings.ToLower(fe.Field())] = "Too long"
			}
		}
	}
	return errs
}

// Load finds the album across product types; there is no single album endpoint.
func (e albumEntity) Load(ctx context.Context, id string) (media.Fields, error) {
	for _, pt := range backend.ProductTypes {
		groups, err := e.api.ListGalleryGroups(ctx, string(pt))
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			if g.ID.String() != id {
				continue
			}
			productType := g.ProductType
			if productType == "" {
				productType = string(pt)
			}
			return media.Fields{"title": g.Title, "description": g.Description, "productType": productType}, nil
		}
	}
	return nil, backend.ErrNotFound
}

func (e albumEntity) NewRepository() media.AttachmentRepository {
	return &albumRepository{api: e.api}
}

func (albumEntity) DecorateForm(_ context.Context, d *drafts.Draft, data map[string]any) {
	data["ProductTypes"] = productTypeNames()
	if fields, ok := data["Fields"].(media.Fields); ok && fields.Get("productType") == "" {
		fields = fields.Clone()
		fields["productType"] = string(backend.ProductModoola)
		data["Fields"] = fields
	}
}

// albumRepository saves the album, then uploads each file and links it to
// the album as a gallery image.
type albumRepository struct {
	api API
}

func (r *albumRepository) input(fields media.Fields) backend.GalleryGroupInput {
	return backend.GalleryGroupInput{
		Title:       fields.Get("title"),
		Description: fields.Get("description"),
		ProductType: fields.Get("productType"),
	}
}

func (r *albumRepository) CreateParent(ctx context.Context, fields media.Fields) (string, error) {
	return r.api.CreateGalleryGroup(ctx, r.input(fields))
}

func (r *albumRepository) UpdateParent(ctx context.Context, id string, fields media.Fields) error {
	return r.api.UpdateGalleryGroup(ctx, id, r.input(fields))
}

func (r *albumRepository) UploadAttachment(ctx context.Context, parentID string, file media.File, meta media.Metadata) (media.Descriptor, error) {
	url, err := UploadFile(ctx, r.api, file)
	if err != nil {
		return media.Descriptor{}, err
	}
	id, err := r.api.CreateGalleryImage(ctx, backend.GalleryImageInput{
		ImageURL:    url,
		Caption:     meta.Fields.Get("title"),
		Description: meta.Fields.Get("description"),
		Order:       0,
		GroupID:     parentID,
	})
	if err != nil {
		return media.Descriptor{}, fmt.Errorf("link image: %w", err)
	}
	return media.Descriptor{ID: id, URL: url}, nil
}

// Uploader stores raw files through /upload/gallery.
type Uploader interface {
	UploadGalleryFiles(ctx context.Context, files ...backend.Upload) ([]backend.UploadedFile, error)
}

// UploadFile sends one staged file through /upload/gallery and returns its
// stored URL. Products store their images the same way.
func UploadFile(ctx context.Context, api Uploader, file media.File) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	uploaded, err := api.UploadGalleryFiles(ctx, backend.Upload{Name: file.Name, ContentType: file.ContentType, Reader: rc})
	if err != nil {
		return "", err
	}
	if len(uploaded) == 0 || uploaded[0].URL == "" {
		return "", fmt.Errorf("upload %s: %w", file.Name, backend.ErrMalformedResponse)
	}
	return uploaded[0].URL, nil
}

func productTypeNames() []string {
	out := make([]string, 0, len(backend.ProductTypes))
	for _, pt := range backend.ProductTypes {
		out = append(out, string(pt))
	}
	return out
}

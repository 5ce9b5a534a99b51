package products

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/machineskills/console/internal/backend"
	"github.com/machineskills/console/internal/drafts"
	"github.com/machineskills/console/internal/gallery"
	"github.com/machineskills/console/internal/media"
)

// API is the part of the backend client used for products.
type API interface {
	ListProducts(ctx context.Context) ([]backend.Product, error)
	GetProduct(ctx context.Context, id string) (backend.Product, error)
	CreateProduct(ctx context.Context, in backend.ProductInput) (string, error)
	UpdateProduct(ctx context.Context, id string, in backend.ProductInput) error
	DeleteProduct(ctx context.Context, id string) error
	UploadGalleryFiles(ctx context.Context, files ...backend.Upload) ([]backend.UploadedFile, error)
}

// imagesField holds the kept image URLs, one per line.
const imagesField = "images"

type productForm struct {
	Title       string `validate:"required,max=200"`
	Slug        string `validate:"required,oneof=MODOOLA MACHINE_EXCHANGE TITANIUM_LASER"`
	Description string `validate:"max=8000"`
}

type productEntity struct {
	api      API
	validate *validator.Validate
}

func (productEntity) Kind() string         { return "product" }
func (productEntity) Label() string        { return "Product" }
func (productEntity) BasePath() string     { return "/products" }
func (productEntity) FormTemplate() string { return "pages/products/form.html" }

func (productEntity) ParseFields(r *http.Request) media.Fields {
	return media.Fields{
		"title":       strings.TrimSpace(r.PostFormValue("title")),
		"slug":        r.PostFormValue("slug"),
		"description": strings.TrimSpace(r.PostFormValue("description")),
		imagesField:   joinImages(r.PostForm["keep"]),
	}
}

func (e productEntity) Validate(fields media.Fields) map[string]string {
	errs := map[string]string{}
	form := productForm{Title: fields.Get("title"), Slug: fields.Get("slug"), Description: fields.Get("description")}
	var verrs validator.ValidationErrors
	if errors.As(e.validate.Struct(form), &verrs) {
		for _, fe := range verrs {
			switch fe.Field() {
			case "Title":
				errs["title"] = "Title is required"
			case "Slug":
				errs["slug"] = "Choose a product type"
			default:
				errs["description"] = "Description is too long"
			}
		}
	}
	return errs
}

func (e productEntity) Load(ctx context.Context, id string) (media.Fields, error) {
	p, err := e.api.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return media.Fields{
		"title":       p.Title,
		"slug":        p.Slug,
		"description": p.Description,
		imagesField:   joinImages(p.Images),
	}, nil
}

func (e productEntity) NewRepository() media.AttachmentRepository {
	return &productRepository{api: e.api}
}

func (productEntity) DecorateForm(_ context.Context, _ *drafts.Draft, data map[string]any) {
	types := make([]string, 0, len(backend.ProductTypes))
	for _, pt := range backend.ProductTypes {
		types = append(types, string(pt))
	}
	data["ProductTypes"] = types
	if fields, ok := data["Fields"].(media.Fields); ok {
		data["ExistingImages"] = splitImages(fields.Get(imagesField))
	}
}

// productRepository keeps the product's image list for one save. Each
// uploaded file is appended and the full list is written back.
type productRepository struct {
	api    API
	images []string
}

func productInput(fields media.Fields, images []string) backend.ProductInput {
	return backend.ProductInput{
		Slug:        fields.Get("slug"),
		Title:       fields.Get("title"),
		Description: fields.Get("description"),
		Images:      images,
	}
}

func (r *productRepository) CreateParent(ctx context.Context, fields media.Fields) (string, error) {
	r.images = splitImages(fields.Get(imagesField))
	return r.api.CreateProduct(ctx, productInput(fields, r.images))
}

func (r *productRepository) UpdateParent(ctx context.Context, id string, fields media.Fields) error {
	r.images = splitImages(fields.Get(imagesField))
	return r.api.UpdateProduct(ctx, id, productInput(fields, r.images))
}

func (r *productRepository) UploadAttachment(ctx context.Context, parentID string, file media.File, meta media.Metadata) (media.Descriptor, error) {
	url, err := gallery.UploadFile(ctx, r.api, file)
	if err != nil {
		return media.Descriptor{}, err
	}
	next := append(append([]string(nil), r.images...), url)
	if err := r.api.UpdateProduct(ctx, parentID, productInput(meta.Fields, next)); err != nil {
		return media.Descriptor{}, fmt.Errorf("append image: %w", err)
	}
	r.images = next
	return media.Descriptor{URL: url}, nil
}

func splitImages(v string) []string {
	var out []string
	for _, line := range strings.Split(v, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func joinImages(images []string) string {
	return strings.Join(images, "\n")
}

package centers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/machineskills/console/internal/backend"
	"github.com/machineskills/console/internal/media"
)

// API is the part of the backend client used for modular centers.
type API interface {
	ListCenters(ctx context.Context) ([]backend.Center, error)
	GetCenter(ctx context.Context, id string) (backend.Center, error)
	CreateCenter(ctx context.Context, in backend.CenterInput) (string, error)
	UpdateCenter(ctx context.Context, id string, in backend.CenterInput) error
	DeleteCenter(ctx context.Context, id string) error
	ListCenterImages(ctx context.Context, centerID string) ([]backend.CenterImage, error)
	UploadCenterImage(ctx context.Context, centerID string, file backend.Upload, meta backend.CenterImageMeta) (backend.CenterImage, error)
	DeleteCenterImage(ctx context.Context, centerID, imageID string) error
}

// ImageTypeMachine is the image type used for photos attached from the form.
const ImageTypeMachine = "MACHINE"

type centerForm struct {
	Title       string `validate:"required,max=200"`
	Location    string `validate:"max=200"`
	Description string `validate:"max=4000"`
}

var fieldErrors = map[string]string{
	"Title":       "Title is required",
	"Location":    "Location is too long",
	"Description": "Description is too long",
}

type centerEntity struct {
	api      API
	validate *validator.Validate
}

func (centerEntity) Kind() string         { return "center" }
func (centerEntity) Label() string        { return "Center" }
func (centerEntity) BasePath() string     { return "/centers" }
func (centerEntity) FormTemplate() string { return "pages/centers/form.html" }

func (centerEntity) ParseFields(r *http.Request) media.Fields {
	return media.Fields{
		"title":       strings.TrimSpace(r.PostFormValue("title")),
		"location":    strings.TrimSpace(r.PostFormValue("location")),
		"description": strings.TrimSpace(r.PostFormValue("description")),
	}
}

func (e centerEntity) Validate(fields media.Fields) map[string]string {
	errs := map[string]string{}
	form := centerForm{Title: fields.Get("title"), Location: fields.Get("location"), Description: fields.Get("description")}
	var verrs validator.ValidationErrors
	if errors.As(e.validate.Struct(form), &verrs) {
		for _, fe := range verrs {
			errs[strings.ToLower(fe.Field())] = fieldErrors[fe.Field()]
		}
	}
	return errs
}

func (e centerEntity) Load(ctx context.Context, id string) (media.Fields, error) {
	c, err := e.api.GetCenter(ctx, id)
	if err != nil {
		return nil, err
	}
	return media.Fields{"title": c.Title, "location": c.Location, "description": c.Description}, nil
}

func (e centerEntity) NewRepository() media.AttachmentRepository {
	return centerRepository{api: e.api}
}

// centerRepository saves the center, then posts each image to the center's
// image collection.
type centerRepository struct {
	api API
}

func centerInput(fields media.Fields) backend.CenterInput {
	return backend.CenterInput{
		Title:       fields.Get("title"),
		Location:    fields.Get("location"),
		Description: fields.Get("description"),
	}
}

func (r centerRepository) CreateParent(ctx context.Context, fields media.Fields) (string, error) {
	return r.api.CreateCenter(ctx, centerInput(fields))
}

func (r centerRepository) UpdateParent(ctx context.Context, id string, fields media.Fields) error {
	return r.api.UpdateCenter(ctx, id, centerInput(fields))
}

func (r centerRepository) UploadAttachment(ctx context.Context, parentID string, file media.File, meta media.Metadata) (media.Descriptor, error) {
	rc, err := file.Open()
	if err != nil {
		return media.Descriptor{}, err
	}
	defer rc.Close()
	img, err := r.api.UploadCenterImage(ctx, parentID,
		backend.Upload{Name: file.Name, ContentType: file.ContentType, Reader: rc},
		backend.CenterImageMeta{Caption: meta.Caption, Type: ImageTypeMachine, Order: 0, IsActive: true})
	if err != nil {
		return media.Descriptor{}, err
	}
	return media.Descriptor{ID: img.ID.String(), URL: img.ImageURL}, nil
}

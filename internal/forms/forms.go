// Package forms validates user-submitted posts and comments.
package forms

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/yatube/yatube/internal/db"
	"github.com/yatube/yatube/internal/models"
)

// Validation messages shown next to form fields.
const (
	MsgRequired      = "This field is required."
	MsgInvalidChoice = "Select a valid choice. That choice is not one of the available choices."
	MsgInvalidImage  = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
)

// Errors maps a field name to its validation messages.
type Errors map[string][]string

// Add records a message for field.
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Get returns the first message for field, or "".
func (e Errors) Get(field string) string {
	if msgs := e[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Valid reports whether no field has an error.
func (e Errors) Valid() bool { return len(e) == 0 }

// GroupLookup resolves a group id to a group.
type GroupLookup interface {
	GetByID(ctx context.Context, id int64) (*models.Group, error)
}

// ImageChecker rejects uploads that are not images.
type ImageChecker interface {
	Check(fh *multipart.FileHeader) error
}

// PostForm carries the fields of the create and edit post pages.
type PostForm struct {
	Text  string
	Group string
	Image *multipart.FileHeader

	// Set by Validate.
	GroupID *int64
	Errors  Errors
}

// PostFormFromRequest reads the submitted fields. A missing image is not an error.
func PostFormFromRequest(r *http.Request) *PostForm {
	f := &PostForm{
		Text:   r.PostFormValue("text"),
		Group:  r.PostFormValue("group"),
		Errors: Errors{},
	}
	if _, fh, err := r.FormFile("image"); err == nil {
		f.Image = fh
	}
	return f
}

// PostFormFromPost prefills the form with a post's current values.
func PostFormFromPost(p *models.Post) *PostForm {
	f := &PostForm{Text: p.Text, Errors: Errors{}}
	if p.GroupID != nil {
		f.Group = strconv.FormatInt(*p.GroupID, 10)
	}
	return f
}

// Validate checks every field and reports whether the form is valid. Only
// lookup failures other than a missing group are returned as errors.
func (f *PostForm) Validate(ctx context.Context, groups GroupLookup, images ImageChecker) (bool, error) {
	if f.Errors == nil {
		f.Errors = Errors{}
	}
	f.GroupID = nil

	if strings.TrimSpace(f.Text) == "" {
		f.Errors.Add("text", MsgRequired)
	}

	if raw := strings.TrimSpace(f.Group); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			f.Errors.Add("group", MsgInvalidChoice)
		} else if _, err := groups.GetByID(ctx, id); err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				return false, err
			}
			f.Errors.Add("group", MsgInvalidChoice)
		} else {
			f.GroupID = &id
		}
	}

	if f.Image != nil && images != nil {
		if err := images.Check(f.Image); err != nil {
			f.Errors.Add("image", MsgInvalidImage)
		}
	}

	return f.Errors.Valid(), nil
}

// Apply copies the validated text and group onto p. The image is stored by
// the caller.
func (f *PostForm) Apply(p *models.Post) {
	p.Text = f.Text
	p.GroupID = f.GroupID
}

// SelectedGroup reports whether id is the form's current group choice.
func (f *PostForm) SelectedGroup(id int64) bool {
	return f.Group == strconv.FormatInt(id, 10)
}

// CommentForm carries the comment box on the post page.
type CommentForm struct {
	Text   string
	Errors Errors
}

// CommentFormFromRequest reads the submitted comment.
func CommentFormFromRequest(r *http.Request) *CommentForm {
	return &CommentForm{Text: r.PostFormValue("text"), Errors: Errors{}}
}

// Validate reports whether the comment has non-blank text.
func (f *CommentForm) Validate() bool {
	if f.Errors == nil {
		f.Errors = Errors{}
	}
	if strings.TrimSpace(f.Text) == "" {
		f.Errors.Add("text", MsgRequired)
	}
	return f.Errors.Valid()
}

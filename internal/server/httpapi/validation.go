package httpapi

import (
	"errors"
	"sort"
	"strings"

	"github.com/dmitrijs2005/taskcamp/internal/server/models"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type validatable interface {
	Validate() error
}

var lowercase = validation.By(func(v interface{}) error {
	s, _ := v.(string)
	if s != strings.ToLower(s) {
		return errors.New("must be in lower case")
	}
	return nil
})

func roleRule() validation.Rule {
	roles := models.AllRoles()
	in := make([]interface{}, len(roles))
	for i, r := range roles {
		in[i] = string(r)
	}
	return validation.In(in...).Error("must be one of admin, project_admin, member")
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *registerRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.Username = strings.TrimSpace(r.Username)
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Username, validation.Required, lowercase, validation.Length(3, 0)),
		validation.Field(&r.Password, validation.Required),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *loginRequest) Validate() error {
	emailRules := []validation.Rule{is.Email}
	if strings.TrimSpace(r.Username) == "" {
		emailRules = append([]validation.Rule{validation.Required.Error("email or username is required")}, emailRules...)
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, emailRules...),
		validation.Field(&r.Password, validation.Required),
	)
}

func (r *loginRequest) identifier() string {
	if r.Email != "" {
		return r.Email
	}
	return r.Username
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (r *changePasswordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r *forgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

func (r *resetPasswordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.NewPassword, validation.Required),
	)
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r *createProjectRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
	)
}

type addMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r *addMemberRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Role, validation.Required, roleRule()),
	)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (r *updateRoleRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Role, validation.Required, roleRule()),
	)
}

// fieldErrors flattens ozzo errors into the envelope's errors list, sorted
// by field name. ok is false when err is not a per-field validation error.
func fieldErrors(err error) ([]FieldError, bool) {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return nil, false
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]FieldError, 0, len(keys))
	for _, k := range keys {
		out = append(out, FieldError{k: errs[k].Error()})
	}
	return out, true
}

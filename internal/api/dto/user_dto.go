package dto

import (
	"time"

	"github.com/spec-kit/user-service/internal/domain"
)

// UserRequest is the payload for creating or updating a user. Domain is optional
// and an empty password on update keeps the current one.
type UserRequest struct {
	Name          string   `json:"name" validate:"required,max=255"`
	Domain        string   `json:"domain" validate:"omitempty,max=255,excludesall=@"`
	Password      string   `json:"password" validate:"omitempty,max=72"`
	Roles         []string `json:"roles" validate:"omitempty,dive,required,max=64"`
	AccountLocked bool     `json:"account_locked"`
}

// ToDomain converts the request to a candidate user.
func (r UserRequest) ToDomain() domain.User {
	return domain.User{
		Name:          r.Name,
		Domain:        r.Domain,
		Password:      r.Password,
		Roles:         r.Roles,
		AccountLocked: r.AccountLocked,
	}
}

// AdminResetRequest carries the administrator's new credentials. Name defaults
// to the built-in administrator.
type AdminResetRequest struct {
	Name     string `json:"name" validate:"omitempty,max=255"`
	Domain   string `json:"domain" validate:"omitempty,max=255,excludesall=@"`
	Password string `json:"password" validate:"required,max=72"`
}

// ToDomain converts the request to a candidate user.
func (r AdminResetRequest) ToDomain() domain.User {
	return domain.User{Name: r.Name, Domain: r.Domain, Password: r.Password}
}

// UserResponse is the public view of a user. Credential material is never included.
type UserResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Domain             string    `json:"domain"`
	FullyQualifiedName string    `json:"fully_qualified_name"`
	Roles              []string  `json:"roles"`
	Status             string    `json:"status"`
	AccountLocked      bool      `json:"account_locked"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewUserResponse maps a domain user to its response form.
func NewUserResponse(u domain.User) UserResponse {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return UserResponse{
		ID:                 u.ID,
		Name:               u.Name,
		Domain:             u.Domain,
		FullyQualifiedName: u.FullyQualifiedName(),
		Roles:              roles,
		Status:             string(u.Status()),
		AccountLocked:      u.AccountLocked,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

// NewUserResponses maps a slice of users.
func NewUserResponses(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserResponse(u))
	}
	return out
}

package httpapi

import (
	"time"

	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/dmitrijs2005/laplink/internal/server/services"
)

type messageResponse struct {
	Message string `json:"message"`
}

type userDTO struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Email           string      `json:"email"`
	Phone           string      `json:"phone,omitempty"`
	City            string      `json:"city,omitempty"`
	Role            models.Role `json:"role"`
	IsEmailVerified bool        `json:"isEmailVerified"`
}

func newUserDTO(u *models.User) userDTO {
	return userDTO{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Phone:           u.Phone,
		City:            u.City,
		Role:            u.Role,
		IsEmailVerified: u.IsEmailVerified,
	}
}

type sessionResponse struct {
	Message      string  `json:"message"`
	User         userDTO `json:"user"`
	AccessToken  string  `json:"accessToken"`
	RefreshToken string  `json:"refreshToken"`
}

func newSessionResponse(msg string, s *services.Session) sessionResponse {
	return sessionResponse{
		Message:      msg,
		User:         newUserDTO(s.User),
		AccessToken:  s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ownerDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type requestDTO struct {
	ID         string         `json:"id"`
	Type       models.Kind    `json:"type"`
	Status     models.Status  `json:"status"`
	AdminNotes string         `json:"adminNotes"`
	Payload    models.Payload `json:"payload"`
	Owner      *ownerDTO      `json:"owner,omitempty"`
	ImageURLs  []string       `json:"imageUrls,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func newRequestDTO(r *models.Request) requestDTO {
	d := requestDTO{
		ID:         r.ID,
		Type:       r.Kind,
		Status:     r.Status,
		AdminNotes: r.AdminNotes,
		Payload:    r.Payload,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.Owner != nil {
		d.Owner = &ownerDTO{ID: r.Owner.ID, Name: r.Owner.Name, Email: r.Owner.Email, Phone: r.Owner.Phone}
	}
	return d
}

func newRequestDTOs(rs []*models.Request) []requestDTO {
	out := make([]requestDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, newRequestDTO(r))
	}
	return out
}

type requestResponse struct {
	Message string     `json:"message"`
	Request requestDTO `json:"request"`
}

type transitionRequest struct {
	Status     models.Status `json:"status"`
	AdminNotes *string       `json:"adminNotes"`
}

type imageUploadRequest struct {
	ContentType string `json:"contentType"`
}

type imageUploadResponse struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"uploadUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

package httpapi

import (
	"fmt"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

// bind decodes the JSON body into v; a malformed body is a validation error.
func bind(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrValidation)
	}
	return nil
}

func noStore(c *fiber.Ctx) {
	c.Set(fiber.HeaderCacheControl, "no-store")
}

func (s *HTTPServer) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	u, err := s.auth.Register(c.UserContext(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		City:     req.City,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(registerResponse{
		Message: "Registration successful. Please verify OTP sent to email.",
		UserID:  u.ID,
	})
}

func (s *HTTPServer) verifyOTP(c *fiber.Ctx) error {
	var req otpRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	already, err := s.auth.VerifyRegistration(c.UserContext(), req.Email, req.OTP)
	if err != nil {
		return err
	}
	if already {
		return c.JSON(messageResponse{Message: "Email already verified. Please login."})
	}
	return c.JSON(messageResponse{Message: "Email verified successfully! You can now login."})
}

func (s *HTTPServer) login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	sess, err := s.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	noStore(c)
	return c.JSON(newSessionResponse("Login successful", sess))
}

func (s *HTTPServer) sendLoginOTP(c *fiber.Ctx) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.auth.SendLoginOTP(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.JSON(messageResponse{Message: "OTP sent"})
}

func (s *HTTPServer) verifyLoginOTP(c *fiber.Ctx) error {
	var req otpRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	sess, err := s.auth.VerifyLoginOTP(c.UserContext(), req.Email, req.OTP)
	if err != nil {
		return err
	}
	noStore(c)
	return c.JSON(newSessionResponse("Login successful", sess))
}

func (s *HTTPServer) forgotPassword(c *fiber.Ctx) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.auth.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.JSON(messageResponse{Message: "Password reset OTP sent to email."})
}

func (s *HTTPServer) resetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.auth.ResetPassword(c.UserContext(), req.Email, req.OTP, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(messageResponse{Message: "Password reset successfully. Please login."})
}

func (s *HTTPServer) changePassword(c *fiber.Ctx) error {
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id := identityFrom(c)
	if err := s.auth.ChangePassword(c.UserContext(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(messageResponse{Message: "Password changed successfully"})
}

func (s *HTTPServer) refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.RefreshToken == "" {
		return common.ErrUnauthenticated
	}

	sess, err := s.auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	noStore(c)
	return c.JSON(newSessionResponse("Token refreshed", sess))
}

func (s *HTTPServer) me(c *fiber.Ctx) error {
	u, err := s.auth.Me(c.UserContext(), identityFrom(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": newUserDTO(u)})
}

package httpapi

import (
	"strings"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/logging"
	"github.com/dmitrijs2005/laplink/internal/server/auth"
	"github.com/gofiber/fiber/v2"
)

const identityKey = "identity"

// authGate admits requests carrying a valid access token and stores the
// caller's identity, with the role freshly read from storage.
func (s *HTTPServer) authGate(c *fiber.Ctx) error {
	token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return common.ErrUnauthenticated
	}

	id, err := s.auth.Authenticate(c.UserContext(), token)
	if err != nil {
		return err
	}

	c.Locals(identityKey, id)
	c.SetUserContext(logging.WithAttrs(c.UserContext(), "user_id", id.UserID))
	return c.Next()
}

// logContext tags everything the services log for this request with its id.
func logContext(c *fiber.Ctx) error {
	rid := c.GetRespHeader(fiber.HeaderXRequestID)
	c.SetUserContext(logging.WithAttrs(c.UserContext(), "request_id", rid))
	return c.Next()
}

// requireAdmin must run after authGate.
func (s *HTTPServer) requireAdmin(c *fiber.Ctx) error {
	if !identityFrom(c).IsAdmin() {
		return common.ErrForbidden
	}
	return c.Next()
}

func identityFrom(c *fiber.Ctx) auth.Identity {
	id, _ := c.Locals(identityKey).(auth.Identity)
	return id
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/dmitrijs2005/laplink/internal/server/services"
	"github.com/dmitrijs2005/laplink/internal/server/storage"
	"github.com/gofiber/fiber/v2"
)

// decodeRequestPayload picks the payload variant from the body's "type"
// field. Service bodies may omit it.
func decodeRequestPayload(category models.Category, body []byte) (models.Payload, error) {
	var head struct {
		Type models.Kind `json:"type"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, fmt.Errorf("%w: malformed request body", common.ErrValidation)
	}

	kind := head.Type
	if kind == "" && category == models.CategoryService {
		kind = models.KindService
	}
	if kind.Category() != category {
		return nil, fmt.Errorf("%w: type must be one of %v", common.ErrValidation, category.Kinds())
	}

	p, err := models.DecodePayload(kind, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return p, nil
}

func (s *HTTPServer) createRequest(category models.Category) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload, err := decodeRequestPayload(category, c.Body())
		if err != nil {
			return err
		}

		req, err := s.requests.Create(c.UserContext(), identityFrom(c).UserID, category, payload)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(requestResponse{
			Message: "Request created successfully",
			Request: newRequestDTO(req),
		})
	}
}

func (s *HTTPServer) listMine(category models.Category) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rs, err := s.requests.ListMine(c.UserContext(), identityFrom(c).UserID, category)
		if err != nil {
			return err
		}
		return c.JSON(s.withImageURLs(c.UserContext(), rs))
	}
}

func (s *HTTPServer) listAll(category models.Category) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := models.RequestFilter{
			Category: category,
			Kind:     models.Kind(strings.ToUpper(c.Query("type"))),
			Status:   models.Status(strings.ToUpper(c.Query("status"))),
		}
		rs, err := s.requests.ListAll(c.UserContext(), identityFrom(c), filter)
		if err != nil {
			return err
		}
		return c.JSON(s.withImageURLs(c.UserContext(), rs))
	}
}

func (s *HTTPServer) transition(category models.Category) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req transitionRequest
		if err := bind(c, &req); err != nil {
			return err
		}

		updated, err := s.requests.Transition(c.UserContext(), identityFrom(c), category, services.TransitionInput{
			ID:     c.Params("id"),
			Status: models.Status(strings.ToUpper(string(req.Status))),
			Notes:  req.AdminNotes,
		})
		if err != nil {
			return err
		}
		return c.JSON(requestResponse{Message: "Request updated", Request: newRequestDTO(updated)})
	}
}

func (s *HTTPServer) presignImage(c *fiber.Ctx) error {
	var req imageUploadRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if !strings.HasPrefix(req.ContentType, "image/") {
		return fmt.Errorf("%w: contentType must be an image type", common.ErrValidation)
	}

	up, err := s.uploads.PresignUpload(c.UserContext(), identityFrom(c).UserID, req.ContentType)
	if err != nil {
		return err
	}
	return c.JSON(imageUploadResponse{Key: up.Key, UploadURL: up.URL, ExpiresAt: up.ExpiresAt})
}

// withImageURLs converts rs and adds short-lived GET links for sell-listing
// images. Without object storage the listing is returned without links.
func (s *HTTPServer) withImageURLs(ctx context.Context, rs []*models.Request) []requestDTO {
	dtos := newRequestDTOs(rs)
	if s.uploads == nil {
		return dtos
	}

	var keys []string
	for _, r := range rs {
		if sell, ok := r.Payload.(*models.SellPayload); ok {
			keys = append(keys, sell.Images...)
		}
	}
	if len(keys) == 0 {
		return dtos
	}

	urls, err := s.uploads.PresignDownloads(ctx, keys)
	if err != nil {
		if !errors.Is(err, storage.ErrNotConfigured) {
			s.logger.Warn(ctx, "presign image downloads failed", "error", err)
		}
		return dtos
	}
	for i, r := range rs {
		sell, ok := r.Payload.(*models.SellPayload)
		if !ok {
			continue
		}
		for _, key := range sell.Images {
			dtos[i].ImageURLs = append(dtos[i].ImageURLs, urls[key])
		}
	}
	return dtos
}

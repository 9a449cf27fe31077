package models

import (
	"fmt"
	"path"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

const (
	imageKeyRoot   = "requests"
	imageKeyLayout = "2006/01/02"
)

// OwnerScoped is implemented by payloads that reference resources of the
// submitting user and must be checked against that user.
type OwnerScoped interface {
	ValidateOwner(ownerID string) error
}

// ImageKey builds the object-storage key of an image uploaded by ownerID:
// requests/<owner>/<yyyy/mm/dd>/<uuid>.
func ImageKey(ownerID string, at time.Time, id string) string {
	return path.Join(imageKeyRoot, ownerID, at.UTC().Format(imageKeyLayout), id)
}

// ownedImageKeys accepts only keys ImageKey could have produced for ownerID.
func ownedImageKeys(ownerID string) validation.RuleFunc {
	return func(value any) error {
		keys, _ := value.([]string)
		for i, key := range keys {
			if err := checkImageKey(ownerID, key); err != nil {
				return fmt.Errorf("image %d %w", i+1, err)
			}
		}
		return nil
	}
}

func checkImageKey(ownerID, key string) error {
	rest, ok := strings.CutPrefix(key, imageKeyRoot+"/")
	if !ok {
		return errInvalidImageKey
	}
	owner, rest, ok := strings.Cut(rest, "/")
	if !ok {
		return errInvalidImageKey
	}
	if ownerID == "" || owner != ownerID {
		return errForeignImageKey
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 4 {
		return errInvalidImageKey
	}
	if _, err := time.Parse(imageKeyLayout, strings.Join(parts[:3], "/")); err != nil {
		return errInvalidImageKey
	}
	if uuid.Validate(parts[3]) != nil {
		return errInvalidImageKey
	}
	return nil
}

type imageKeyError string

func (e imageKeyError) Error() string { return string(e) }

const (
	errInvalidImageKey imageKeyError = "is not a valid upload key"
	errForeignImageKey imageKeyError = "was not uploaded by this account"
)

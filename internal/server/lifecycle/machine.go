// Package lifecycle holds the status graphs of service and laptop requests
// and decides whether a status change is allowed.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/server/models"
)

var (
	// ErrUnknownStatus is a validation error: the status is not part of the graph.
	ErrUnknownStatus = fmt.Errorf("%w: unknown status", common.ErrValidation)

	ErrIllegalTransition = errors.New("illegal status transition")
	ErrTerminalStatus    = errors.New("request status is terminal")
	// ErrStatusConflict means the status changed between read and write.
	ErrStatusConflict = errors.New("request status changed concurrently")
)

// Machine is the transition table of one request category.
type Machine struct {
	initial     models.Status
	transitions map[models.Status]map[models.Status]struct{}
	terminal    map[models.Status]struct{}
}

var (
	serviceMachine = &Machine{
		initial: models.StatusNew,
		transitions: map[models.Status]map[models.Status]struct{}{
			models.StatusNew: {
				models.StatusDiagnosing: {},
				models.StatusCancelled:  {},
			},
			models.StatusDiagnosing: {
				models.StatusInProgress: {},
				models.StatusCancelled:  {},
			},
			models.StatusInProgress: {
				models.StatusReady:     {},
				models.StatusCancelled: {},
			},
			models.StatusReady: {
				models.StatusDelivered: {},
				models.StatusCancelled: {},
			},
		},
		terminal: map[models.Status]struct{}{
			models.StatusDelivered: {},
			models.StatusCancelled: {},
		},
	}

	laptopMachine = &Machine{
		initial: models.StatusNew,
		transitions: map[models.Status]map[models.Status]struct{}{
			models.StatusNew: {
				models.StatusUnderReview: {},
				models.StatusRejected:    {},
			},
			models.StatusUnderReview: {
				models.StatusContacted: {},
				models.StatusRejected:  {},
			},
			models.StatusContacted: {
				models.StatusOfferGiven: {},
				models.StatusRejected:   {},
			},
			models.StatusOfferGiven: {
				models.StatusCompleted: {},
				models.StatusRejected:  {},
			},
		},
		terminal: map[models.Status]struct{}{
			models.StatusCompleted: {},
			models.StatusRejected:  {},
		},
	}
)

// For returns the machine of a category, or nil for an unknown one.
func For(category models.Category) *Machine {
	switch category {
	case models.CategoryService:
		return serviceMachine
	case models.CategoryLaptop:
		return laptopMachine
	default:
		return nil
	}
}

// Initial is the status new requests start in.
func (m *Machine) Initial() models.Status {
	return m.initial
}

// Known reports whether s belongs to this graph.
func (m *Machine) Known(s models.Status) bool {
	if _, ok := m.transitions[s]; ok {
		return true
	}
	_, ok := m.terminal[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (m *Machine) IsTerminal(s models.Status) bool {
	_, ok := m.terminal[s]
	return ok
}

// Check validates moving from one status to another. Staying in the same
// status is always allowed, so notes can be edited on terminal requests.
func (m *Machine) Check(from, to models.Status) error {
	if !m.Known(to) {
		return fmt.Errorf("%w %q", ErrUnknownStatus, to)
	}
	if from == to {
		return nil
	}
	if m.IsTerminal(from) {
		return fmt.Errorf("%w: %s", ErrTerminalStatus, from)
	}
	if _, ok := m.transitions[from][to]; !ok {
		return fmt.Errorf("%w: %s -> %s, allowed: %s", ErrIllegalTransition, from, to, joinStatuses(m.Next(from)))
	}
	return nil
}

// Next lists the statuses reachable in one step from s.
func (m *Machine) Next(s models.Status) []models.Status {
	var out []models.Status
	for _, candidate := range order {
		if _, ok := m.transitions[s][candidate]; ok {
			out = append(out, candidate)
		}
	}
	return out
}

func joinStatuses(ss []models.Status) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// order fixes the listing order of Next.
var order = []models.Status{
	models.StatusNew,
	models.StatusDiagnosing, models.StatusInProgress, models.StatusReady, models.StatusDelivered, models.StatusCancelled,
	models.StatusUnderReview, models.StatusContacted, models.StatusOfferGiven, models.StatusCompleted, models.StatusRejected,
}

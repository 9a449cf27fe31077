package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to parse phone numbers given without a
// country prefix.
const DefaultPhoneRegion = "IN"

// Detail is a labelled payload field rendered in admin notifications.
type Detail struct {
	Label string
	Value string
}

// Payload is the immutable submission of a request. Each kind has its own
// concrete type and validation rules.
type Payload interface {
	Kind() Kind
	Validate() error
	// Normalize canonicalizes user input (trimmed text, E.164 phone, defaults).
	Normalize()
	Details() []Detail
}

type Problem string

const (
	ProblemSpeaker     Problem = "SPEAKER"
	ProblemKeyboard    Problem = "KEYBOARD"
	ProblemDisplay     Problem = "DISPLAY"
	ProblemBattery     Problem = "BATTERY"
	ProblemOSInstall   Problem = "OS_INSTALL"
	ProblemMotherboard Problem = "MOTHERBOARD"
	ProblemHinge       Problem = "HINGE"
	ProblemOther       Problem = "OTHER"
)

var knownProblems = map[Problem]struct{}{
	ProblemSpeaker: {}, ProblemKeyboard: {}, ProblemDisplay: {}, ProblemBattery: {},
	ProblemOSInstall: {}, ProblemMotherboard: {}, ProblemHinge: {}, ProblemOther: {},
}

type ServiceType string

const (
	ServiceCarryIn    ServiceType = "CARRY_IN"
	ServicePickupDrop ServiceType = "PICKUP_DROP"
)

type TimeSlot string

const (
	SlotMorning   TimeSlot = "MORNING"
	SlotAfternoon TimeSlot = "AFTERNOON"
	SlotEvening   TimeSlot = "EVENING"
)

type Condition string

const (
	ConditionExcellent   Condition = "EXCELLENT"
	ConditionGood        Condition = "GOOD"
	ConditionAverage     Condition = "AVERAGE"
	ConditionNeedsRepair Condition = "NEEDS_REPAIR"
)

type Urgency string

const (
	UrgencyUrgent    Urgency = "URGENT"
	UrgencyThisWeek  Urgency = "THIS_WEEK"
	UrgencyThisMonth Urgency = "THIS_MONTH"
)

// ServicePayload is a repair ticket.
type ServicePayload struct {
	Name                 string      `json:"name"`
	Phone                string      `json:"phone"`
	Address              string      `json:"address,omitempty"`
	City                 string      `json:"city"`
	Brand                string      `json:"brand"`
	Model                string      `json:"model,omitempty"`
	Problems             []Problem   `json:"problems,omitempty"`
	CustomProblem        string      `json:"customProblem,omitempty"`
	PreferredServiceType ServiceType `json:"preferredServiceType,omitempty"`
	PreferredTimeSlot    TimeSlot    `json:"preferredTimeSlot,omitempty"`
	UnderWarranty        bool        `json:"underWarranty"`
}

func (p *ServicePayload) Kind() Kind { return KindService }

func (p *ServicePayload) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Phone, validation.Required, validation.By(validPhone)),
		validation.Field(&p.City, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.Brand, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.Address, validation.Length(0, 500)),
		validation.Field(&p.Problems, validation.By(validProblems)),
		validation.Field(&p.CustomProblem, validation.Length(0, 1000)),
		validation.Field(&p.PreferredServiceType, validation.In(ServiceCarryIn, ServicePickupDrop)),
		validation.Field(&p.PreferredTimeSlot, validation.In(SlotMorning, SlotAfternoon, SlotEvening)),
	)
}

func (p *ServicePayload) Normalize() {
	normalizeContact(&p.Name, &p.Phone, &p.City)
	p.Brand = strings.TrimSpace(p.Brand)
	p.Model = strings.TrimSpace(p.Model)
}

func (p *ServicePayload) Details() []Detail {
	problems := make([]string, 0, len(p.Problems))
	for _, pr := range p.Problems {
		problems = append(problems, string(pr))
	}
	return compact([]Detail{
		{"Name", p.Name},
		{"Phone", p.Phone},
		{"Address", p.Address},
		{"City", p.City},
		{"Brand", p.Brand},
		{"Model", p.Model},
		{"Problems", strings.Join(problems, ", ")},
		{"Custom problem", p.CustomProblem},
		{"Service type", string(p.PreferredServiceType)},
		{"Time slot", string(p.PreferredTimeSlot)},
		{"Under warranty", strconv.FormatBool(p.UnderWarranty)},
	})
}

// LaptopSpec describes a device in sell and buy tickets.
type LaptopSpec struct {
	Brand     string    `json:"brand"`
	Model     string    `json:"model,omitempty"`
	Processor string    `json:"processor,omitempty"`
	RAM       string    `json:"ram,omitempty"`
	Storage   string    `json:"storage,omitempty"`
	Condition Condition `json:"condition,omitempty"`
}

func (s LaptopSpec) details() []Detail {
	return []Detail{
		{"Brand", s.Brand},
		{"Model", s.Model},
		{"Processor", s.Processor},
		{"RAM", s.RAM},
		{"Storage", s.Storage},
		{"Condition", string(s.Condition)},
	}
}

var conditionRule = validation.In(ConditionExcellent, ConditionGood, ConditionAverage, ConditionNeedsRepair)

// SellPayload is a customer offering a laptop to the shop.
type SellPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	City  string `json:"city"`
	LaptopSpec
	ExpectedPrice    float64  `json:"expectedPrice,omitempty"`
	AdditionalIssues string   `json:"additionalIssues,omitempty"`
	Images           []string `json:"images,omitempty"`
}

func (p *SellPayload) Kind() Kind { return KindSell }

func (p *SellPayload) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Phone, validation.Required, validation.By(validPhone)),
		validation.Field(&p.City, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.LaptopSpec, validation.By(func(any) error {
			return validation.ValidateStruct(&p.LaptopSpec,
				validation.Field(&p.LaptopSpec.Brand, validation.Required, validation.Length(1, 100)),
				validation.Field(&p.LaptopSpec.Condition, conditionRule),
			)
		})),
		validation.Field(&p.ExpectedPrice, validation.Min(0.0)),
		validation.Field(&p.Images, validation.Length(0, 10)),
	)
}

// ValidateOwner checks that every image key was issued to ownerID.
func (p *SellPayload) ValidateOwner(ownerID string) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Images, validation.By(ownedImageKeys(ownerID))),
	)
}

func (p *SellPayload) Normalize() {
	normalizeContact(&p.Name, &p.Phone, &p.City)
	p.Brand = strings.TrimSpace(p.Brand)
	for i := range p.Images {
		p.Images[i] = strings.TrimSpace(p.Images[i])
	}
	if p.Condition == "" {
		p.Condition = ConditionGood
	}
}

func (p *SellPayload) Details() []Detail {
	d := []Detail{{"Name", p.Name}, {"Phone", p.Phone}, {"City", p.City}}
	d = append(d, p.LaptopSpec.details()...)
	d = append(d,
		Detail{"Expected price", formatPrice(p.ExpectedPrice)},
		Detail{"Additional issues", p.AdditionalIssues},
		Detail{"Images", strings.Join(p.Images, ", ")},
	)
	return compact(d)
}

// BuyPayload is a customer asking the shop to source a laptop.
type BuyPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	City  string `json:"city"`
	LaptopSpec
	Purpose     string  `json:"purpose"`
	BudgetRange string  `json:"budgetRange"`
	Urgency     Urgency `json:"urgency,omitempty"`
}

func (p *BuyPayload) Kind() Kind { return KindBuy }

func (p *BuyPayload) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Phone, validation.Required, validation.By(validPhone)),
		validation.Field(&p.City, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.Purpose, validation.Required, validation.Length(1, 500)),
		validation.Field(&p.BudgetRange, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.Urgency, validation.In(UrgencyUrgent, UrgencyThisWeek, UrgencyThisMonth)),
		validation.Field(&p.LaptopSpec, validation.By(func(any) error {
			return validation.ValidateStruct(&p.LaptopSpec,
				validation.Field(&p.LaptopSpec.Condition, conditionRule),
			)
		})),
	)
}

func (p *BuyPayload) Normalize() {
	normalizeContact(&p.Name, &p.Phone, &p.City)
	p.Purpose = strings.TrimSpace(p.Purpose)
	p.BudgetRange = strings.TrimSpace(p.BudgetRange)
	if p.Condition == "" {
		p.Condition = ConditionGood
	}
}

func (p *BuyPayload) Details() []Detail {
	d := []Detail{{"Name", p.Name}, {"Phone", p.Phone}, {"City", p.City}}
	d = append(d, p.LaptopSpec.details()...)
	d = append(d,
		Detail{"Purpose", p.Purpose},
		Detail{"Budget range", p.BudgetRange},
		Detail{"Urgency", string(p.Urgency)},
	)
	return compact(d)
}

// NewPayload returns an empty payload of the given kind.
func NewPayload(kind Kind) (Payload, error) {
	switch kind {
	case KindService:
		return &ServicePayload{}, nil
	case KindSell:
		return &SellPayload{}, nil
	case KindBuy:
		return &BuyPayload{}, nil
	default:
		return nil, fmt.Errorf("unknown request kind %q", kind)
	}
}

// DecodePayload unmarshals raw JSON into the payload type for kind.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	p, err := NewPayload(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}

// NormalizePhone parses raw (with DefaultPhoneRegion when it has no
// country prefix) and formats it as E.164.
func NormalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), DefaultPhoneRegion)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return "", errors.New("not a possible phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func validPhone(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := NormalizePhone(s); err != nil {
		return errors.New("must be a valid phone number")
	}
	return nil
}

func validProblems(value any) error {
	problems, _ := value.([]Problem)
	for _, p := range problems {
		if _, ok := knownProblems[p]; !ok {
			return fmt.Errorf("unknown problem %q", p)
		}
	}
	return nil
}

func normalizeContact(name, phone, city *string) {
	*name = strings.TrimSpace(*name)
	*city = strings.TrimSpace(*city)
	if n, err := NormalizePhone(*phone); err == nil {
		*phone = n
	}
}

func formatPrice(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func compact(in []Detail) []Detail {
	out := in[:0]
	for _, d := range in {
		if d.Value != "" {
			out = append(out, d)
		}
	}
	return out
}

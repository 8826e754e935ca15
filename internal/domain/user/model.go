// Package user implements user registration, update reconciliation,
// and activation state for the user management service.
package user

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c2s/ums/internal/domain/identifier"
	"github.com/c2s/ums/internal/platform/fhir"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrSSNSystemNotFound      = errors.New("ssn identifier system not found")
	ErrMissingEmail           = errors.New("patient registration requires an email")
	ErrUserActivationNotFound = errors.New("user has no activation account")
)

// RolePatient is the role code that triggers patient creation at
// registration time.
const RolePatient = "patient"

type TelecomSystem string

const (
	TelecomEmail TelecomSystem = "EMAIL"
	TelecomPhone TelecomSystem = "PHONE"
)

func ParseTelecomSystem(s string) (TelecomSystem, error) {
	switch TelecomSystem(strings.ToUpper(s)) {
	case TelecomEmail:
		return TelecomEmail, nil
	case TelecomPhone:
		return TelecomPhone, nil
	}
	return "", fmt.Errorf("unknown telecom system: %s", s)
}

type TelecomUse string

const (
	TelecomUseHome TelecomUse = "HOME"
	TelecomUseWork TelecomUse = "WORK"
)

func ParseTelecomUse(s string) (TelecomUse, error) {
	switch TelecomUse(strings.ToUpper(s)) {
	case TelecomUseHome:
		return TelecomUseHome, nil
	case TelecomUseWork:
		return TelecomUseWork, nil
	}
	return "", fmt.Errorf("unknown telecom use: %s", s)
}

type AddressUse string

const (
	AddressUseHome AddressUse = "HOME"
	AddressUseWork AddressUse = "WORK"
)

func ParseAddressUse(s string) (AddressUse, error) {
	switch AddressUse(strings.ToUpper(s)) {
	case AddressUseHome:
		return AddressUseHome, nil
	case AddressUseWork:
		return AddressUseWork, nil
	}
	return "", fmt.Errorf("unknown address use: %s", s)
}

// Role maps to the role table. Role rows are seeded by migration.
type Role struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Code string    `db:"code" json:"code"`
	Name string    `db:"name" json:"name"`
}

// Telecom maps to the telecom table. (system, use) is the natural key
// within one demographics record.
type Telecom struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	DemographicsID uuid.UUID     `db:"demographics_id" json:"-"`
	System         TelecomSystem `db:"system" json:"system"`
	Use            TelecomUse    `db:"use" json:"use"`
	Value          string        `db:"value" json:"value"`
}

// Address maps to the address table. (use) is the natural key within
// one demographics record.
type Address struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	DemographicsID uuid.UUID  `db:"demographics_id" json:"-"`
	Use            AddressUse `db:"use" json:"use"`
	Line1          string     `db:"line1" json:"line1"`
	Line2          *string    `db:"line2" json:"line2,omitempty"`
	City           string     `db:"city" json:"city"`
	StateCode      string     `db:"state_code" json:"state_code"`
	CountryCode    string     `db:"country_code" json:"country_code"`
	PostalCode     string     `db:"postal_code" json:"postal_code"`
}

// Demographics is the personal-data aggregate owned by exactly one
// user. Identifiers are shared rows linked through
// demographics_identifier; telecoms and addresses are owned.
type Demographics struct {
	ID          uuid.UUID                `db:"id" json:"id"`
	FirstName   string                   `db:"first_name" json:"first_name"`
	MiddleName  *string                  `db:"middle_name" json:"middle_name,omitempty"`
	LastName    string                   `db:"last_name" json:"last_name"`
	BirthDate   *time.Time               `db:"birth_date" json:"birth_date,omitempty"`
	GenderCode  *string                  `db:"gender_code" json:"gender_code,omitempty"`
	Identifiers []*identifier.Identifier `json:"identifiers,omitempty"`
	Telecoms    []*Telecom               `json:"telecoms,omitempty"`
	Addresses   []*Address               `json:"addresses,omitempty"`
	PatientID   *uuid.UUID               `json:"patient_id,omitempty"`
}

// User maps to the users table plus its owned aggregate.
type User struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	UserAuthID   *string      `db:"user_auth_id" json:"user_auth_id,omitempty"`
	Disabled     bool         `db:"disabled" json:"disabled"`
	Locale       string       `db:"locale" json:"locale"`
	Roles        []Role       `json:"roles"`
	Demographics Demographics `json:"demographics"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// HasRole reports whether the user carries the given role code.
func (u *User) HasRole(code string) bool {
	for _, r := range u.Roles {
		if r.Code == code {
			return true
		}
	}
	return false
}

// EmailTelecom returns the first EMAIL telecom, or nil.
func (d *Demographics) EmailTelecom() *Telecom {
	for _, t := range d.Telecoms {
		if t.System == TelecomEmail {
			return t
		}
	}
	return nil
}

// FindTelecom returns the telecom matching the natural key, or nil.
func (d *Demographics) FindTelecom(system TelecomSystem, use TelecomUse) *Telecom {
	for _, t := range d.Telecoms {
		if t.System == system && t.Use == use {
			return t
		}
	}
	return nil
}

// FindAddress returns the address matching the natural key, or nil.
func (d *Demographics) FindAddress(use AddressUse) *Address {
	for _, a := range d.Addresses {
		if a.Use == use {
			return a
		}
	}
	return nil
}

// IdentifierBySystem returns the first identifier under the given
// system code, or nil.
func (d *Demographics) IdentifierBySystem(systemCode string) *identifier.Identifier {
	for _, id := range d.Identifiers {
		if id.SystemCode == systemCode {
			return id
		}
	}
	return nil
}

// IdentifierInput is a caller-supplied identifier reference.
type IdentifierInput struct {
	Value      string `json:"value"`
	SystemCode string `json:"system_code"`
}

type TelecomInput struct {
	System string `json:"system"`
	Use    string `json:"use"`
	Value  string `json:"value"`
}

type AddressInput struct {
	Use         string  `json:"use"`
	Line1       string  `json:"line1"`
	Line2       *string `json:"line2,omitempty"`
	City        string  `json:"city"`
	StateCode   string  `json:"state_code"`
	CountryCode string  `json:"country_code"`
	PostalCode  string  `json:"postal_code"`
}

// UserInput carries the incoming representation for registration and
// update. SSN nil means "no SSN"; on update that removes an existing
// one.
type UserInput struct {
	UserAuthID        *string           `json:"user_auth_id,omitempty"`
	Locale            string            `json:"locale"`
	RoleCodes         []string          `json:"roles"`
	FirstName         string            `json:"first_name"`
	MiddleName        *string           `json:"middle_name,omitempty"`
	LastName          string            `json:"last_name"`
	BirthDate         *time.Time        `json:"birth_date,omitempty"`
	GenderCode        *string           `json:"gender_code,omitempty"`
	SSN               *string           `json:"ssn,omitempty"`
	Identifiers       []IdentifierInput `json:"identifiers,omitempty"`
	Telecoms          []TelecomInput    `json:"telecoms,omitempty"`
	Addresses         []AddressInput    `json:"addresses,omitempty"`
	RegistrationEmail *string           `json:"registration_email,omitempty"`
}

// ToFHIRPatient projects the user's demographics as a FHIR Patient
// for the external publisher. patientID is the Patient row id.
func (u *User) ToFHIRPatient(patientID uuid.UUID) map[string]interface{} {
	d := &u.Demographics

	var identifiers []fhir.Identifier
	for _, id := range d.Identifiers {
		ident := fhir.Identifier{
			System: id.SystemCode,
			Value:  id.Value,
		}
		if id.SystemGenerated {
			ident.Type = &fhir.CodeableConcept{
				Coding: []fhir.Coding{{System: fhir.IdentifierTypeSystem, Code: "MR"}},
				Text:   "Medical record number",
			}
		}
		identifiers = append(identifiers, ident)
	}

	name := fhir.HumanName{
		Use:    "official",
		Family: d.LastName,
		Given:  []string{d.FirstName},
	}
	if d.MiddleName != nil {
		name.Given = append(name.Given, *d.MiddleName)
	}

	var telecoms []fhir.ContactPoint
	for _, t := range d.Telecoms {
		telecoms = append(telecoms, fhir.ContactPoint{
			System: fhirContactSystem(t.System),
			Use:    strings.ToLower(string(t.Use)),
			Value:  t.Value,
		})
	}

	var addresses []fhir.Address
	for _, a := range d.Addresses {
		lines := []string{a.Line1}
		if a.Line2 != nil && *a.Line2 != "" {
			lines = append(lines, *a.Line2)
		}
		addresses = append(addresses, fhir.Address{
			Use:        strings.ToLower(string(a.Use)),
			Line:       lines,
			City:       a.City,
			State:      a.StateCode,
			PostalCode: a.PostalCode,
			Country:    a.CountryCode,
		})
	}

	result := map[string]interface{}{
		"resourceType": "Patient",
		"id":           patientID.String(),
		"meta":         fhir.Meta{LastUpdated: u.UpdatedAt},
		"active":       !u.Disabled,
		"identifier":   identifiers,
		"name":         []fhir.HumanName{name},
	}
	if len(telecoms) > 0 {
		result["telecom"] = telecoms
	}
	if len(addresses) > 0 {
		result["address"] = addresses
	}
	if d.BirthDate != nil {
		result["birthDate"] = d.BirthDate.Format("2006-01-02")
	}
	if d.GenderCode != nil {
		result["gender"] = *d.GenderCode
	}
	return result
}

func fhirContactSystem(s TelecomSystem) string {
	switch s {
	case TelecomEmail:
		return "email"
	case TelecomPhone:
		return "phone"
	}
	return strings.ToLower(string(s))
}

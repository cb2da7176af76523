package model

import (
	"strings"
	"time"
)

// Semantic form field types the agent knows how to fill.
const (
	FieldFirstName    = "first_name"
	FieldLastName     = "last_name"
	FieldEmail        = "email"
	FieldPhone        = "phone"
	FieldSubmitButton = "submit_button"
)

// Profile is the candidate data used to match jobs and fill forms.
// The agent never mutates it.
type Profile struct {
	UserID              string
	FirstName           string
	LastName            string
	Email               string
	Phone               string
	Location            string
	Summary             string
	Skills              []string
	ExperienceYears     int
	PreferredIndustries []string
	PreferredLocations  []string
	SalaryMin           int
	RemotePreferred     bool
	ResumeURL           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsComplete reports whether every field required for auto-applying is set.
// Zero years of experience counts as missing.
func (p *Profile) IsComplete() bool {
	if p == nil {
		return false
	}
	for _, v := range []string{p.FirstName, p.LastName, p.Email, p.Phone, p.Location, p.Summary} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return p.ExperienceYears != 0 && len(p.Skills) > 0
}

// MissingFields lists the required fields that are empty, in a stable order.
func (p *Profile) MissingFields() []string {
	if p == nil {
		return []string{"profile"}
	}
	var out []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			out = append(out, name)
		}
	}
	check("first_name", p.FirstName)
	check("last_name", p.LastName)
	check("email", p.Email)
	check("phone", p.Phone)
	check("location", p.Location)
	check("summary", p.Summary)
	if p.ExperienceYears == 0 {
		out = append(out, "experience_years")
	}
	if len(p.Skills) == 0 {
		out = append(out, "skills")
	}
	return out
}

// ValueFor maps a semantic form field type to the profile attribute that fills it.
func (p *Profile) ValueFor(fieldType string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(fieldType)) {
	case FieldFirstName:
		return p.FirstName, true
	case FieldLastName:
		return p.LastName, true
	case FieldEmail:
		return p.Email, true
	case FieldPhone:
		return p.Phone, true
	default:
		return "", false
	}
}

func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

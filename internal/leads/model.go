package leads

import (
	"encoding/json"
	"strings"

	"github.com/wolfman30/transcenda-leads/internal/validators"
)

// DefaultSource is recorded when the form does not name its origin.
const DefaultSource = "Landing Page"

// Revenue ranges offered by the qualification form.
const (
	RevenueUnder100K = "Under 100K"
	Revenue100KTo500K = "100K - 500K"
	Revenue500KTo1M   = "500K - 1M"
	Revenue1MTo5M     = "1M - 5M"
	RevenueAbove5M    = "Above 5M"
)

// Timelines offered by the qualification form.
const (
	TimelineImmediately = "Immediately (losing money daily)"
	TimelineWithin30    = "Within 30 days"
	TimelineWithin90    = "Within 90 days"
	TimelineResearching = "Just researching"
)

// Roles offered by the qualification form.
const (
	RoleCEOFounder         = "CEO/Founder"
	RoleSalesDirector      = "Sales Director"
	RoleMarketingDirector  = "Marketing Director"
	RoleOperationsDirector = "Operations Director"
	RoleOther              = "Other Decision Maker"
)

var (
	RevenueRanges = []string{RevenueUnder100K, Revenue100KTo500K, Revenue500KTo1M, Revenue1MTo5M, RevenueAbove5M}
	Timelines     = []string{TimelineImmediately, TimelineWithin30, TimelineWithin90, TimelineResearching}
	Roles         = []string{RoleCEOFounder, RoleSalesDirector, RoleMarketingDirector, RoleOperationsDirector, RoleOther}
	Industries    = []string{"Real Estate", "Professional Services", "Technology/SaaS", "Healthcare", "E-commerce", "Other High-Ticket"}
	Challenges    = []string{
		"Lead response time killing conversions",
		"Can't scale without hiring more staff",
		"Losing leads to competitors",
		"Low appointment show rates",
		"Manual tasks eating profits",
	}
	PreferredTimes = []string{"Morning (9AM - 12PM)", "Afternoon (12PM - 5PM)", "Evening (5PM - 8PM)", "Flexible"}
)

// ROISnapshot is the ROI calculator state a visitor attached to the form.
type ROISnapshot struct {
	MonthlyLeads      float64         `json:"monthlyLeads"`
	AvgDealValue      float64         `json:"avgDealValue"`
	CloseRate         float64         `json:"closeRate"`
	ResponseTime      float64         `json:"responseTime"`
	CalculatedResults json.RawMessage `json:"calculatedResults,omitempty"`
}

// Submission is one qualification form POST. Only FirstName, Phone and Email
// are required.
type Submission struct {
	FirstName         string       `json:"firstName"`
	LastName          string       `json:"lastName,omitempty"`
	Email             string       `json:"email"`
	Phone             string       `json:"phone"`
	CompanyName       string       `json:"companyName,omitempty"`
	Role              string       `json:"role,omitempty"`
	Industry          string       `json:"industry,omitempty"`
	MonthlyRevenue    string       `json:"monthlyRevenue,omitempty"`
	PrimaryChallenge  string       `json:"primaryChallenge,omitempty"`
	Timeline          string       `json:"timeline,omitempty"`
	PreferredTime     string       `json:"preferredTime,omitempty"`
	Source            string       `json:"source,omitempty"`
	ROICalculatorData *ROISnapshot `json:"roiCalculatorData,omitempty"`
}

// Normalize trims every text field and strips whitespace from the phone.
func (s *Submission) Normalize() {
	s.FirstName = strings.TrimSpace(s.FirstName)
	s.LastName = strings.TrimSpace(s.LastName)
	s.Email = strings.TrimSpace(s.Email)
	s.Phone = validators.NormalizePhone(s.Phone)
	s.CompanyName = strings.TrimSpace(s.CompanyName)
	s.Role = strings.TrimSpace(s.Role)
	s.Industry = strings.TrimSpace(s.Industry)
	s.MonthlyRevenue = strings.TrimSpace(s.MonthlyRevenue)
	s.PrimaryChallenge = strings.TrimSpace(s.PrimaryChallenge)
	s.Timeline = strings.TrimSpace(s.Timeline)
	s.PreferredTime = strings.TrimSpace(s.PreferredTime)
	s.Source = strings.TrimSpace(s.Source)
}

// Validate checks required fields first, then email and phone syntax.
func (s *Submission) Validate() error {
	var missing []string
	if strings.TrimSpace(s.FirstName) == "" {
		missing = append(missing, "firstName")
	}
	if strings.TrimSpace(s.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(s.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Message: "Missing required fields: " + strings.Join(missing, ", ")}
	}
	if !validators.IsValidEmail(strings.TrimSpace(s.Email)) {
		return &ValidationError{Fields: []string{"email"}, Message: "Invalid email address"}
	}
	if !validators.IsValidPhone(s.Phone) {
		return &ValidationError{Fields: []string{"phone"}, Message: "Invalid phone number"}
	}
	return nil
}

// DisplayName is the first and last name joined.
func (s *Submission) DisplayName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

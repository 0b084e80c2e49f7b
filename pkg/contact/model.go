package contact

import (
	"regexp"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Contact is the normalized person record. Email is the identity key and is
// stored lowercased and trimmed; every other field defaults to empty.
type Contact struct {
	ID        string                      `json:"id" gorm:"primaryKey;column:id"`
	Email     string                      `json:"email" gorm:"column:email;uniqueIndex;not null"`
	FirstName string                      `json:"firstName" gorm:"column:first_name"`
	LastName  string                      `json:"lastName" gorm:"column:last_name"`
	Tags      datatypes.JSONSlice[string] `json:"tags" gorm:"column:tags"`

	CustomFields datatypes.JSONMap `json:"customFields" gorm:"column:custom_fields"`

	// Professional info
	JobTitle   string `json:"jobTitle" gorm:"column:job_title;index"`
	Seniority  string `json:"seniority" gorm:"column:seniority"`
	Department string `json:"department" gorm:"column:department;index"`

	// Company info
	Company        string `json:"company" gorm:"column:company;index"`
	CompanyWebsite string `json:"companyWebsite" gorm:"column:company_website"`
	CompanySize    string `json:"companySize" gorm:"column:company_size"`
	Industry       string `json:"industry" gorm:"column:industry;index"`

	// Additional contact info
	Phone         string `json:"phone" gorm:"column:phone"`
	LinkedinURL   string `json:"linkedinUrl" gorm:"column:linkedin_url"`
	TwitterHandle string `json:"twitterHandle" gorm:"column:twitter_handle"`

	// Location info
	Country string `json:"country" gorm:"column:country;index"`
	City    string `json:"city" gorm:"column:city"`
	State   string `json:"state" gorm:"column:state"`

	// Provenance
	Source     string `json:"source" gorm:"column:source"`
	Confidence int    `json:"confidence" gorm:"column:confidence"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail lowercases and trims an address; the second return reports
// whether the result is syntactically valid.
func NormalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	return email, emailPattern.MatchString(email)
}

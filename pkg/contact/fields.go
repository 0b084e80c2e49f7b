package contact

// SystemField is one target of the import field mapping. Email is the only
// required field.
type SystemField struct {
	ID       string
	Label    string
	Required bool
	// Column is the contacts table column backing the field; empty for
	// fields that live in the custom-field bag.
	Column string
}

var systemFields = []SystemField{
	// Basic contact information
	{ID: "email", Label: "Email Address", Required: true, Column: "email"},
	{ID: "firstName", Label: "First Name", Column: "first_name"},
	{ID: "lastName", Label: "Last Name", Column: "last_name"},

	// Professional info
	{ID: "jobTitle", Label: "Job Title", Column: "job_title"},
	{ID: "seniority", Label: "Seniority", Column: "seniority"},
	{ID: "department", Label: "Department", Column: "department"},

	// Company info
	{ID: "company", Label: "Company", Column: "company"},
	{ID: "companyWebsite", Label: "Company Website", Column: "company_website"},
	{ID: "companySize", Label: "Company Size", Column: "company_size"},
	{ID: "industry", Label: "Industry", Column: "industry"},

	// Additional contact info
	{ID: "phone", Label: "Phone Number", Column: "phone"},
	{ID: "linkedinUrl", Label: "LinkedIn URL", Column: "linkedin_url"},
	{ID: "twitterHandle", Label: "Twitter Handle", Column: "twitter_handle"},

	// Location info
	{ID: "address", Label: "Address"},
	{ID: "city", Label: "City", Column: "city"},
	{ID: "state", Label: "State/Province", Column: "state"},
	{ID: "postalCode", Label: "Postal Code"},
	{ID: "country", Label: "Country", Column: "country"},

	// Other fields
	{ID: "tags", Label: "Tags", Column: "tags"},
	{ID: "source", Label: "Source", Column: "source"},
	{ID: "confidence", Label: "Confidence Score", Column: "confidence"},
	{ID: "verificationStatus", Label: "Verification Status"},
	{ID: "custom", Label: "Custom Field"},
}

// SystemFields returns the mappable field table in declaration order.
func SystemFields() []SystemField {
	out := make([]SystemField, len(systemFields))
	copy(out, systemFields)
	return out
}

// ColumnFor resolves a system field id to its contacts column. Fields without
// a dedicated column (and unknown fields) report ok=false.
func ColumnFor(fieldID string) (string, bool) {
	for _, f := range systemFields {
		if f.ID == fieldID {
			if f.Column == "" {
				return "", false
			}
			return f.Column, true
		}
	}
	return "", false
}

type fieldAliases struct {
	ID      string
	Aliases []string
}

// Alias spellings commonly seen in exported contact lists. Order matters:
// the mapper scans this table top to bottom within each pass.
var fieldVariations = []fieldAliases{
	{"email", []string{"email", "email_address", "mail", "e-mail", "work_email", "personal_email", "emails"}},
	{"firstName", []string{"first_name", "firstname", "name", "given_name", "first name", "given name"}},
	{"lastName", []string{"last_name", "lastname", "surname", "family_name", "last name", "family name"}},
	{"jobTitle", []string{"job_title", "job title", "title", "position", "role", "job_role", "job role"}},
	{"seniority", []string{"seniority", "level", "job_level", "job level", "experience_level"}},
	{"department", []string{"department", "dept", "team", "division", "function"}},
	{"company", []string{"company", "company_name", "organization", "organisation", "employer", "workplace", "job_company_name"}},
	{"companyWebsite", []string{"company_website", "website", "company_url", "company_web", "work_website", "job_company_website"}},
	{"companySize", []string{"company_size", "size", "employees", "headcount", "employee_count", "job_company_size"}},
	{"industry", []string{"industry", "sector", "business", "job_company_industry"}},
	{"phone", []string{"phone", "telephone", "mobile", "cell", "phone_number", "mobile_phone", "work_phone", "phone_numbers"}},
	{"linkedinUrl", []string{"linkedin", "linkedin_url", "linkedin_profile", "linkedin_link", "linkedin_username"}},
	{"twitterHandle", []string{"twitter", "twitter_handle", "twitter_username", "twitter_account", "twitter_url"}},
	{"address", []string{"address", "street_address", "street", "location_street_address"}},
	{"city", []string{"city", "town", "locality", "location_locality"}},
	{"state", []string{"state", "province", "region", "location_region"}},
	{"country", []string{"country", "nation", "location_country"}},
	{"tags", []string{"tags", "categories", "labels", "groups", "segments"}},
	{"source", []string{"source", "lead_source", "origin", "channel", "acquisition_source"}},
}

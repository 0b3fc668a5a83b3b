package sponsor

import "time"

// Sponsor funds one or more sponsorship programs and is the recipient of
// extension-request notifications.
type Sponsor struct {
	ID        string
	Name      string
	Email     string
	City      string
	Street    string
	House     string
	Contact   Contact
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contact is the person representing the sponsor.
type Contact struct {
	FirstName   string
	LastName    string
	DateOfBirth time.Time
}

// CSVHeader lists the columns of a sponsor export row.
func (Sponsor) CSVHeader() []string {
	return []string{"id", "name", "email", "city", "street", "house",
		"contact_first_name", "contact_last_name", "contact_date_of_birth"}
}

// CSVRow flattens the sponsor into one export record.
func (s Sponsor) CSVRow() []string {
	dob := ""
	if !s.Contact.DateOfBirth.IsZero() {
		dob = s.Contact.DateOfBirth.Format("2006-01-02")
	}
	return []string{s.ID, s.Name, s.Email, s.City, s.Street, s.House,
		s.Contact.FirstName, s.Contact.LastName, dob}
}

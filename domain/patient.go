package domain

// Prescription is owned by exactly one patient; it has no identity beyond
// its drug name and position in the patient's list. Filled flips to true
// when a matching cart line is sold and may be reset by a pharmacist edit.
type Prescription struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
	Filled bool   `json:"filled"`
}

// Patient record. IDs are monotonically assigned decimal strings.
type Patient struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	DateOfBirth   string         `json:"date_of_birth"`
	Address       string         `json:"address"`
	Phone         string         `json:"phone"`
	Email         string         `json:"email"`
	InsuranceID   string         `json:"insurance_id"`
	Prescriptions []Prescription `json:"prescriptions"`
}

func (p Patient) RecordID() string { return p.ID }

// UnfilledPrescription returns the first unfilled prescription matching the
// drug name, or nil.
func (p Patient) UnfilledPrescription(drug string) *Prescription {
	for i := range p.Prescriptions {
		if p.Prescriptions[i].Name == drug && !p.Prescriptions[i].Filled {
			return &p.Prescriptions[i]
		}
	}
	return nil
}

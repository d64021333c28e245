package domain

// PharmacyDetails is the single store-front details object edited by the
// system administrator.
type PharmacyDetails struct {
	Name        string `json:"name"`
	Website     string `json:"website"`
	Address     string `json:"address"`
	Owner       string `json:"owner"`
	PhoneNumber string `json:"phone_number"`
	OpeningTime string `json:"opening_time"`
	ClosingTime string `json:"closing_time"`
}

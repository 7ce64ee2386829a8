package model

import "github.com/google/uuid"

// CompanyProfile carries the issuer's tax-authority credentials. Read-only
// to this service; maintained by the back-office profile module.
type CompanyProfile struct {
	ID                uuid.UUID
	LegalName         string
	RUC               string
	Timbrado          string // authority stamp number
	EstablishmentCode string // "001"
	PointCode         string // expedition point, "001"
	Address           string
	Department        string
	City              string
	Phone             string
	Email             string
	TaxPercentage     int
	Currency          string
}

// ClientProfile is the billed party's legal data as currently registered.
// Invoice creation copies what it needs; later edits must not leak into
// issued documents.
type ClientProfile struct {
	ID         uuid.UUID
	LegalName  string
	RUC        string
	Address    string
	Department string
	City       string
	Email      string
	Phone      string
}

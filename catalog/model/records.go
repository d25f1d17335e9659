package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is implemented by every catalog record type.
type Record interface {
	// RecordID returns the server-assigned identifier, or zero for a record
	// that has not been created yet.
	RecordID() int64
}

// Client is a customer that submits samples to the laboratory.
type Client struct {
	ID      int64  `json:"id,omitempty"`
	Name    string `json:"name" validate:"required"`
	TaxID   string `json:"taxId,omitempty"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	// MunicipalityID locates the client address.
	MunicipalityID  int64 `json:"municipalityId,omitempty"`
	PaymentMethodID int64 `json:"paymentMethodId,omitempty"`
	RateID          int64 `json:"rateId,omitempty"`
	Active          bool  `json:"active"`
}

// Sample is a specimen registered for analysis.
type Sample struct {
	ID               int64           `json:"id,omitempty"`
	Code             string          `json:"code" validate:"required"`
	ClientID         int64           `json:"clientId" validate:"required"`
	SampleTypeID     int64           `json:"sampleTypeId" validate:"required"`
	AnalysisTypeIDs  []int64         `json:"analysisTypeIds,omitempty"`
	BathID           int64           `json:"bathId,omitempty"`
	CenterID         int64           `json:"centerId,omitempty"`
	SamplingEntityID int64           `json:"samplingEntityId,omitempty"`
	DeliveryEntityID int64           `json:"deliveryEntityId,omitempty"`
	FormatID         int64           `json:"formatId,omitempty"`
	Status           string          `json:"status,omitempty"`
	Price            decimal.Decimal `json:"price"`
	CollectedAt      *time.Time      `json:"collectedAt,omitempty"`
	ReceivedAt       *time.Time      `json:"receivedAt,omitempty"`
	Notes            string          `json:"notes,omitempty"`
}

// User is an operator account of the console.
type User struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username" validate:"required"`
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Role     string `json:"role" validate:"required"`
	Active   bool   `json:"active"`
}

// SampleType classifies samples, for example water or soil.
type SampleType struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name" validate:"required"`
}

// AnalysisType is an analysis the laboratory can perform on a sample.
type AnalysisType struct {
	ID    int64           `json:"id,omitempty"`
	Name  string          `json:"name" validate:"required"`
	Code  string          `json:"code,omitempty"`
	Price decimal.Decimal `json:"price"`
}

// Bath is a water bath or body the sample was taken from.
type Bath struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name" validate:"required"`
}

type Center struct {
	ID             int64  `json:"id,omitempty"`
	Name           string `json:"name" validate:"required"`
	MunicipalityID int64  `json:"municipalityId,omitempty"`
}

type SamplingEntity struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name" validate:"required"`
}

type DeliveryEntity struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name" validate:"required"`
}

// Format is the container or presentation format of a sample.
type Format struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name" validate:"required"`
}

type Country struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name" validate:"required"`
	Code string `json:"code,omitempty"`
}

// Province belongs to a country. Lists are usually requested filtered by
// CountryID.
type Province struct {
	ID        int64  `json:"id,omitempty"`
	Name      string `json:"name" validate:"required"`
	CountryID int64  `json:"countryId" validate:"required"`
}

// Municipality belongs to a province. Lists are usually requested filtered by
// ProvinceID.
type Municipality struct {
	ID         int64  `json:"id,omitempty"`
	Name       string `json:"name" validate:"required"`
	ProvinceID int64  `json:"provinceId" validate:"required"`
}

type PaymentMethod struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name" validate:"required"`
}

// Rate is a price list applied to a client.
type Rate struct {
	ID       int64           `json:"id,omitempty"`
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount"`
}

func (r Client) RecordID() int64         { return r.ID }
func (r Sample) RecordID() int64         { return r.ID }
func (r User) RecordID() int64           { return r.ID }
func (r SampleType) RecordID() int64     { return r.ID }
func (r AnalysisType) RecordID() int64   { return r.ID }
func (r Bath) RecordID() int64           { return r.ID }
func (r Center) RecordID() int64         { return r.ID }
func (r SamplingEntity) RecordID() int64 { return r.ID }
func (r DeliveryEntity) RecordID() int64 { return r.ID }
func (r Format) RecordID() int64         { return r.ID }
func (r Country) RecordID() int64        { return r.ID }
func (r Province) RecordID() int64       { return r.ID }
func (r Municipality) RecordID() int64   { return r.ID }
func (r PaymentMethod) RecordID() int64  { return r.ID }
func (r Rate) RecordID() int64           { return r.ID }

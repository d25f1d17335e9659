package model

import (
	"errors"
	"fmt"
)

// ErrUnknownEntity is returned when an entity name or value is not one of the
// catalog entities.
var ErrUnknownEntity = errors.New("unknown entity")

// Entity identifies one of the catalog collections served by the lab API.
type Entity uint8

const (
	Clients Entity = iota
	Samples
	Users
	SampleTypes
	AnalysisTypes
	Baths
	Centers
	SamplingEntities
	DeliveryEntities
	Formats
	Countries
	Provinces
	Municipalities
	PaymentMethods
	Rates

	numEntities
)

// An "invalid array index" compiler error signifies that the constant values
// have changed and the entity table below must be updated.
func _() {
	var x [1]struct{}
	_ = x[Clients-0]
	_ = x[Samples-1]
	_ = x[Users-2]
	_ = x[SampleTypes-3]
	_ = x[AnalysisTypes-4]
	_ = x[Baths-5]
	_ = x[Centers-6]
	_ = x[SamplingEntities-7]
	_ = x[DeliveryEntities-8]
	_ = x[Formats-9]
	_ = x[Countries-10]
	_ = x[Provinces-11]
	_ = x[Municipalities-12]
	_ = x[PaymentMethods-13]
	_ = x[Rates-14]
	_ = x[numEntities-15]
}

type entityInfo struct {
	name string
	path string
	// paramSensitive entities have result sets that depend on the parent
	// selection passed in the query parameters.
	paramSensitive bool
}

var entityTable = [numEntities]entityInfo{
	Clients:          {name: "clients", path: "clients"},
	Samples:          {name: "samples", path: "samples"},
	Users:            {name: "users", path: "users"},
	SampleTypes:      {name: "sampleTypes", path: "sample-types"},
	AnalysisTypes:    {name: "analysisTypes", path: "analysis-types"},
	Baths:            {name: "baths", path: "baths"},
	Centers:          {name: "centers", path: "centers"},
	SamplingEntities: {name: "samplingEntities", path: "sampling-entities"},
	DeliveryEntities: {name: "deliveryEntities", path: "delivery-entities"},
	Formats:          {name: "formats", path: "formats"},
	Countries:        {name: "countries", path: "countries"},
	Provinces:        {name: "provinces", path: "provinces", paramSensitive: true},
	Municipalities:   {name: "municipalities", path: "municipalities", paramSensitive: true},
	PaymentMethods:   {name: "paymentMethods", path: "payment-methods"},
	Rates:            {name: "rates", path: "rates"},
}

// Entities returns all catalog entities in declaration order.
func Entities() []Entity {
	all := make([]Entity, numEntities)
	for i := range all {
		all[i] = Entity(i)
	}
	return all
}

// ParseEntity returns the Entity whose name matches s. Both the camelCase key
// ("sampleTypes") and the REST path ("sample-types") are accepted.
func ParseEntity(s string) (Entity, error) {
	for i, info := range entityTable {
		if s == info.name || s == info.path {
			return Entity(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEntity, s)
}

// Valid reports whether e is one of the declared entities.
func (e Entity) Valid() bool {
	return e < numEntities
}

func (e Entity) String() string {
	if !e.Valid() {
		return fmt.Sprintf("Entity(%d)", e)
	}
	return entityTable[e].name
}

// Path returns the REST collection path of the entity, relative to the API
// base URL.
func (e Entity) Path() string {
	if !e.Valid() {
		return ""
	}
	return entityTable[e].path
}

// ParamSensitive reports whether cached data for the entity must not be used
// to answer a request that carries parameters.
func (e Entity) ParamSensitive() bool {
	return e.Valid() && entityTable[e].paramSensitive
}

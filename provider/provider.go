// Package provider exposes the lab catalog to consumers as typed, cached
// accessors, one per entity, plus the writes that keep the cache consistent
// with the server.
//
// Every accessor returns an ecache.Result. A failed fetch is reported as
// StatusFailed with the cause, never as an empty list, so a caller can tell
// "no records" from "could not load records".
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	logging "github.com/ipfs/go-log/v2"
	"github.com/labtrack/go-liblab/catalog/model"
	"github.com/labtrack/go-liblab/ecache"
	"golang.org/x/sync/errgroup"
)

var log = logging.Logger("provider")

// ErrMissingID is returned by writes that need the identifier of an existing
// record and were not given one.
var ErrMissingID = errors.New("record id required")

// API is the catalog service used by a Provider. It is implemented by
// catalog/client.Client.
type API interface {
	Clients(context.Context, model.Params) ([]model.Client, error)
	Samples(context.Context, model.Params) ([]model.Sample, error)
	Users(context.Context, model.Params) ([]model.User, error)
	SampleTypes(context.Context, model.Params) ([]model.SampleType, error)
	AnalysisTypes(context.Context, model.Params) ([]model.AnalysisType, error)
	Baths(context.Context, model.Params) ([]model.Bath, error)
	Centers(context.Context, model.Params) ([]model.Center, error)
	SamplingEntities(context.Context, model.Params) ([]model.SamplingEntity, error)
	DeliveryEntities(context.Context, model.Params) ([]model.DeliveryEntity, error)
	Formats(context.Context, model.Params) ([]model.Format, error)
	Countries(context.Context, model.Params) ([]model.Country, error)
	Provinces(context.Context, model.Params) ([]model.Province, error)
	Municipalities(context.Context, model.Params) ([]model.Municipality, error)
	PaymentMethods(context.Context, model.Params) ([]model.PaymentMethod, error)
	Rates(context.Context, model.Params) ([]model.Rate, error)

	Create(ctx context.Context, entity model.Entity, payload any) (json.RawMessage, error)
	Update(ctx context.Context, entity model.Entity, id int64, payload any) (json.RawMessage, error)
	Delete(ctx context.Context, entity model.Entity, id int64) error
}

// Provider serves catalog records from an entity cache in front of an API.
type Provider struct {
	api                API
	cache              *ecache.Cache
	preloadConcurrency int
	closed             atomic.Bool
}

// WriteResult is the outcome of a create, update or delete.
type WriteResult struct {
	Success bool
	// Data is the record returned by the server, if any.
	Data json.RawMessage
	Err  error
}

// New creates a Provider that reads and writes through api.
func New(api API, options ...Option) (*Provider, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}
	cache, err := ecache.New(opts.cacheOpts...)
	if err != nil {
		return nil, err
	}
	return &Provider{
		api:                api,
		cache:              cache,
		preloadConcurrency: opts.preloadConcurrency,
	}, nil
}

// Clients returns the lab clients.
func (p *Provider) Clients(ctx context.Context) ecache.Result[model.Client] {
	return ecache.Get(ctx, p.cache, model.Clients, p.api.Clients, nil)
}

// Samples returns samples matching params. A nil params selects all samples.
// Samples have one cache entry: while it is fresh a filtered request is
// answered from it unfiltered, and a filtered fetch replaces it. Invalidate
// samples to force a filtered fetch.
func (p *Provider) Samples(ctx context.Context, params model.Params) ecache.Result[model.Sample] {
	return ecache.Get(ctx, p.cache, model.Samples, p.api.Samples, params)
}

// Users returns the users of the lab.
func (p *Provider) Users(ctx context.Context) ecache.Result[model.User] {
	return ecache.Get(ctx, p.cache, model.Users, p.api.Users, nil)
}

// SampleTypes returns the sample types.
func (p *Provider) SampleTypes(ctx context.Context) ecache.Result[model.SampleType] {
	return ecache.Get(ctx, p.cache, model.SampleTypes, p.api.SampleTypes, nil)
}

// AnalysisTypes returns the analysis types.
func (p *Provider) AnalysisTypes(ctx context.Context) ecache.Result[model.AnalysisType] {
	return ecache.Get(ctx, p.cache, model.AnalysisTypes, p.api.AnalysisTypes, nil)
}

// Baths returns the baths.
func (p *Provider) Baths(ctx context.Context) ecache.Result[model.Bath] {
	return ecache.Get(ctx, p.cache, model.Baths, p.api.Baths, nil)
}

// Centers returns the collection centers.
func (p *Provider) Centers(ctx context.Context) ecache.Result[model.Center] {
	return ecache.Get(ctx, p.cache, model.Centers, p.api.Centers, nil)
}

// SamplingEntities returns the entities that take samples.
func (p *Provider) SamplingEntities(ctx context.Context) ecache.Result[model.SamplingEntity] {
	return ecache.Get(ctx, p.cache, model.SamplingEntities, p.api.SamplingEntities, nil)
}

// DeliveryEntities returns the entities that deliver samples.
func (p *Provider) DeliveryEntities(ctx context.Context) ecache.Result[model.DeliveryEntity] {
	return ecache.Get(ctx, p.cache, model.DeliveryEntities, p.api.DeliveryEntities, nil)
}

// Formats returns the sample formats.
func (p *Provider) Formats(ctx context.Context) ecache.Result[model.Format] {
	return ecache.Get(ctx, p.cache, model.Formats, p.api.Formats, nil)
}

// Countries returns all countries.
func (p *Provider) Countries(ctx context.Context) ecache.Result[model.Country] {
	return ecache.Get(ctx, p.cache, model.Countries, p.api.Countries, nil)
}

// Provinces returns the provinces of a country. A zero countryID returns all
// provinces. Filtered lists are always fetched from the API.
func (p *Provider) Provinces(ctx context.Context, countryID int64) ecache.Result[model.Province] {
	return ecache.Get(ctx, p.cache, model.Provinces, p.api.Provinces, idParam("countryId", countryID))
}

// Municipalities returns the municipalities of a province. A zero provinceID
// returns all municipalities. Filtered lists are always fetched from the API.
func (p *Provider) Municipalities(ctx context.Context, provinceID int64) ecache.Result[model.Municipality] {
	return ecache.Get(ctx, p.cache, model.Municipalities, p.api.Municipalities, idParam("provinceId", provinceID))
}

// PaymentMethods returns the accepted payment methods.
func (p *Provider) PaymentMethods(ctx context.Context) ecache.Result[model.PaymentMethod] {
	return ecache.Get(ctx, p.cache, model.PaymentMethods, p.api.PaymentMethods, nil)
}

// Rates returns the price rates.
func (p *Provider) Rates(ctx context.Context) ecache.Result[model.Rate] {
	return ecache.Get(ctx, p.cache, model.Rates, p.api.Rates, nil)
}

func idParam(key string, id int64) model.Params {
	if id == 0 {
		return nil
	}
	return model.Params{key: id}
}

// State returns the cache state of entity.
func (p *Provider) State(entity model.Entity) ecache.EntryState {
	return p.cache.State(entity)
}

// Invalidate marks the cached records of entity as stale.
func (p *Provider) Invalidate(entity model.Entity) {
	p.cache.Invalidate(entity)
}

// InvalidateAll marks the cached records of all entities as stale.
func (p *Provider) InvalidateAll() {
	p.cache.InvalidateAll()
}

// Subscribe returns a channel of cache events. See ecache.Cache.Subscribe.
func (p *Provider) Subscribe() (<-chan ecache.Event, context.CancelFunc) {
	return p.cache.Subscribe()
}

// CreateOrUpdate creates a record of entity, or updates the existing record
// identified by the payload's RecordID if isUpdate is true. On success the
// cached records of entity are invalidated.
func (p *Provider) CreateOrUpdate(ctx context.Context, entity model.Entity, payload any, isUpdate bool) WriteResult {
	if err := p.checkWrite(entity); err != nil {
		return WriteResult{Err: err}
	}

	var (
		data json.RawMessage
		err  error
	)
	if isUpdate {
		id, idErr := recordID(payload)
		if idErr != nil {
			return WriteResult{Err: fmt.Errorf("update %s: %w", entity, idErr)}
		}
		data, err = p.api.Update(ctx, entity, id, payload)
	} else {
		data, err = p.api.Create(ctx, entity, payload)
	}
	if err != nil {
		log.Errorw("Write failed", "entity", entity, "update", isUpdate, "err", err)
		return WriteResult{Err: err}
	}

	p.cache.Invalidate(entity)
	return WriteResult{Success: true, Data: data}
}

// Delete deletes the record of entity identified by id. On success the cached
// records of entity are invalidated.
func (p *Provider) Delete(ctx context.Context, entity model.Entity, id int64) WriteResult {
	if err := p.checkWrite(entity); err != nil {
		return WriteResult{Err: err}
	}
	if id <= 0 {
		return WriteResult{Err: fmt.Errorf("delete %s: %w", entity, ErrMissingID)}
	}
	if err := p.api.Delete(ctx, entity, id); err != nil {
		log.Errorw("Delete failed", "entity", entity, "id", id, "err", err)
		return WriteResult{Err: err}
	}
	p.cache.Invalidate(entity)
	return WriteResult{Success: true}
}

func (p *Provider) checkWrite(entity model.Entity) error {
	if !entity.Valid() {
		return fmt.Errorf("%w: %s", model.ErrUnknownEntity, entity)
	}
	if p.closed.Load() {
		return ecache.ErrClosed
	}
	return nil
}

func recordID(payload any) (int64, error) {
	if v := reflect.ValueOf(payload); !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil()) {
		return 0, ErrMissingID
	}
	rec, ok := payload.(model.Record)
	if !ok || rec.RecordID() <= 0 {
		return 0, ErrMissingID
	}
	return rec.RecordID(), nil
}

// ReferenceEntities returns the entities loaded by Preload when none are
// given: all entities except samples.
func ReferenceEntities() []model.Entity {
	all := model.Entities()
	refs := make([]model.Entity, 0, len(all))
	for _, e := range all {
		if e != model.Samples {
			refs = append(refs, e)
		}
	}
	return refs
}

// Preload fetches the unfiltered records of the given entities concurrently,
// or of ReferenceEntities if none are given. Entities that are already fresh
// are not fetched again. The failures of all entities are returned together.
func (p *Provider) Preload(ctx context.Context, entities ...model.Entity) error {
	if len(entities) == 0 {
		entities = ReferenceEntities()
	}

	var (
		errs  *multierror.Error
		errMu sync.Mutex
		g     errgroup.Group
	)
	g.SetLimit(p.preloadConcurrency)
	for _, entity := range entities {
		entity := entity
		g.Go(func() error {
			if err := p.load(ctx, entity); err != nil {
				errMu.Lock()
				errs = multierror.Append(errs, err)
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := errs.ErrorOrNil(); err != nil {
		log.Warnw("Preload incomplete", "failed", len(errs.Errors), "total", len(entities))
		return err
	}
	log.Infow("Preloaded catalogs", "count", len(entities))
	return nil
}

// load fetches the unfiltered records of entity through the cache.
func (p *Provider) load(ctx context.Context, entity model.Entity) error {
	var (
		status ecache.Status
		err    error
	)
	switch entity {
	case model.Clients:
		r := p.Clients(ctx)
		status, err = r.Status, r.Err
	case model.Samples:
		r := p.Samples(ctx, nil)
		status, err = r.Status, r.Err
	case model.Users:
		r := p.Users(ctx)
		status, err = r.Status, r.Err
	case model.SampleTypes:
		r := p.SampleTypes(ctx)
		status, err = r.Status, r.Err
	case model.AnalysisTypes:
		r := p.AnalysisTypes(ctx)
		status, err = r.Status, r.Err
	case model.Baths:
		r := p.Baths(ctx)
		status, err = r.Status, r.Err
	case model.Centers:
		r := p.Centers(ctx)
		status, err = r.Status, r.Err
	case model.SamplingEntities:
		r := p.SamplingEntities(ctx)
		status, err = r.Status, r.Err
	case model.DeliveryEntities:
		r := p.DeliveryEntities(ctx)
		status, err = r.Status, r.Err
	case model.Formats:
		r := p.Formats(ctx)
		status, err = r.Status, r.Err
	case model.Countries:
		r := p.Countries(ctx)
		status, err = r.Status, r.Err
	case model.Provinces:
		r := p.Provinces(ctx, 0)
		status, err = r.Status, r.Err
	case model.Municipalities:
		r := p.Municipalities(ctx, 0)
		status, err = r.Status, r.Err
	case model.PaymentMethods:
		r := p.PaymentMethods(ctx)
		status, err = r.Status, r.Err
	case model.Rates:
		r := p.Rates(ctx)
		status, err = r.Status, r.Err
	default:
		return fmt.Errorf("%w: %s", model.ErrUnknownEntity, entity)
	}
	if status == ecache.StatusFailed || status == ecache.StatusCancelled {
		return fmt.Errorf("%s: %w", entity, err)
	}
	return nil
}

// Close drops all cached records. After Close accessors fail with
// ecache.ErrClosed.
func (p *Provider) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.cache.Close()
}

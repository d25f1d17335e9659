package client

import (
	"context"

	"github.com/labtrack/go-liblab/catalog/model"
)

func (c *Client) Clients(ctx context.Context, params model.Params) ([]model.Client, error) {
	return list[model.Client](ctx, c, model.Clients, params)
}

// Samples lists samples. Params carry the filters of the samples screen, such
// as status, clientId, from and to.
func (c *Client) Samples(ctx context.Context, params model.Params) ([]model.Sample, error) {
	return list[model.Sample](ctx, c, model.Samples, params)
}

func (c *Client) Users(ctx context.Context, params model.Params) ([]model.User, error) {
	return list[model.User](ctx, c, model.Users, params)
}

func (c *Client) SampleTypes(ctx context.Context, params model.Params) ([]model.SampleType, error) {
	return list[model.SampleType](ctx, c, model.SampleTypes, params)
}

func (c *Client) AnalysisTypes(ctx context.Context, params model.Params) ([]model.AnalysisType, error) {
	return list[model.AnalysisType](ctx, c, model.AnalysisTypes, params)
}

func (c *Client) Baths(ctx context.Context, params model.Params) ([]model.Bath, error) {
	return list[model.Bath](ctx, c, model.Baths, params)
}

func (c *Client) Centers(ctx context.Context, params model.Params) ([]model.Center, error) {
	return list[model.Center](ctx, c, model.Centers, params)
}

func (c *Client) SamplingEntities(ctx context.Context, params model.Params) ([]model.SamplingEntity, error) {
	return list[model.SamplingEntity](ctx, c, model.SamplingEntities, params)
}

func (c *Client) DeliveryEntities(ctx context.Context, params model.Params) ([]model.DeliveryEntity, error) {
	return list[model.DeliveryEntity](ctx, c, model.DeliveryEntities, params)
}

func (c *Client) Formats(ctx context.Context, params model.Params) ([]model.Format, error) {
	return list[model.Format](ctx, c, model.Formats, params)
}

func (c *Client) Countries(ctx context.Context, params model.Params) ([]model.Country, error) {
	return list[model.Country](ctx, c, model.Countries, params)
}

// Provinces lists provinces, usually filtered by countryId.
func (c *Client) Provinces(ctx context.Context, params model.Params) ([]model.Province, error) {
	return list[model.Province](ctx, c, model.Provinces, params)
}

// Municipalities lists municipalities, usually filtered by provinceId.
func (c *Client) Municipalities(ctx context.Context, params model.Params) ([]model.Municipality, error) {
	return list[model.Municipality](ctx, c, model.Municipalities, params)
}

func (c *Client) PaymentMethods(ctx context.Context, params model.Params) ([]model.PaymentMethod, error) {
	return list[model.PaymentMethod](ctx, c, model.PaymentMethods, params)
}

func (c *Client) Rates(ctx context.Context, params model.Params) ([]model.Rate, error) {
	return list[model.Rate](ctx, c, model.Rates, params)
}

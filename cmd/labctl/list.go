package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/labtrack/go-liblab/catalog/model"
	"github.com/labtrack/go-liblab/ecache"
	"github.com/labtrack/go-liblab/provider"
	"github.com/spf13/cobra"
)

func (a *app) listCmd() *cobra.Command {
	var rawParams []string
	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "List the records of an entity",
		Long: `List the records of an entity, from the cache when fresh.

Samples accept any filter supported by the API. Samples share one cache entry,
so a filter is only sent when that entry is stale, and the filtered list then
replaces it. Provinces accept countryId and municipalities accept provinceId;
these filtered lists are always fetched. Other entities take no parameters.

Entities: ` + entityNames() + `

Example:
  labctl list rates
  labctl list provinces --param countryId=34
  labctl list samples --param status=pending --param clientId=12`,
		Args: userArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntityArg(args[0])
			if err != nil {
				return err
			}
			params, err := parseParams(rawParams)
			if err != nil {
				return err
			}
			data, err := listEntity(cmd.Context(), a.sess.Provider(), entity, params)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().StringArrayVarP(&rawParams, "param", "p", nil, "filter as key=value, may be repeated")
	return cmd
}

func entityNames() string {
	all := model.Entities()
	names := make([]string, len(all))
	for i, e := range all {
		names[i] = e.String()
	}
	return strings.Join(names, ", ")
}

func parseEntityArg(arg string) (model.Entity, error) {
	entity, err := model.ParseEntity(arg)
	if err != nil {
		return 0, userErrorf("unknown entity %q (valid: %s)", arg, entityNames())
	}
	return entity, nil
}

// parseParams parses key=value pairs. Values that are valid JSON are decoded,
// others are kept as strings.
func parseParams(args []string) (model.Params, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(model.Params, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, userErrorf("invalid parameter %q (expected key=value)", arg)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		params[key] = parsed
	}
	return params, nil
}

// idFromParams returns the id in params under key, or zero if params is empty.
// Any other key is an error.
func idFromParams(params model.Params, key string) (int64, error) {
	for k := range params {
		if k != key {
			return 0, userErrorf("unknown parameter %q (only %s is supported)", k, key)
		}
	}
	v, ok := params[key]
	if !ok {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		if n > 0 && n == math.Trunc(n) && n <= math.MaxInt64 {
			return int64(n), nil
		}
	case string:
		if id, err := strconv.ParseInt(n, 10, 64); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, userErrorf("%s must be a positive integer, got %v", key, v)
}

func listEntity(ctx context.Context, p *provider.Provider, entity model.Entity, params model.Params) (any, error) {
	switch entity {
	case model.Samples:
		return records(p.Samples(ctx, params))
	case model.Provinces:
		id, err := idFromParams(params, "countryId")
		if err != nil {
			return nil, err
		}
		return records(p.Provinces(ctx, id))
	case model.Municipalities:
		id, err := idFromParams(params, "provinceId")
		if err != nil {
			return nil, err
		}
		return records(p.Municipalities(ctx, id))
	}

	if len(params) != 0 {
		return nil, userErrorf("%s does not take parameters", entity)
	}
	switch entity {
	case model.Clients:
		return records(p.Clients(ctx))
	case model.Users:
		return records(p.Users(ctx))
	case model.SampleTypes:
		return records(p.SampleTypes(ctx))
	case model.AnalysisTypes:
		return records(p.AnalysisTypes(ctx))
	case model.Baths:
		return records(p.Baths(ctx))
	case model.Centers:
		return records(p.Centers(ctx))
	case model.SamplingEntities:
		return records(p.SamplingEntities(ctx))
	case model.DeliveryEntities:
		return records(p.DeliveryEntities(ctx))
	case model.Formats:
		return records(p.Formats(ctx))
	case model.Countries:
		return records(p.Countries(ctx))
	case model.PaymentMethods:
		return records(p.PaymentMethods(ctx))
	case model.Rates:
		return records(p.Rates(ctx))
	}
	return nil, fmt.Errorf("%w: %s", model.ErrUnknownEntity, entity)
}

func records[T any](r ecache.Result[T]) (any, error) {
	if !r.OK() {
		return nil, r.Err
	}
	log.Debugw("Listed records", "count", len(r.Data), "status", r.Status)
	return r.Data, nil
}

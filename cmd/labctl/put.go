package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/labtrack/go-liblab/catalog/model"
	"github.com/spf13/cobra"
)

func (a *app) putCmd() *cobra.Command {
	var (
		file   string
		update bool
	)
	cmd := &cobra.Command{
		Use:   "put <entity> --file <payload.json>",
		Short: "Create or update a record",
		Long: `Create a record of an entity from a JSON file, or update the record whose
id is in the file when --update is set.

Example:
  labctl put clients --file acme.json
  labctl put rates --file rate-7.json --update`,
		Args: userArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntityArg(args[0])
			if err != nil {
				return err
			}
			if file == "" {
				return userErrorf("--file is required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return userErr(err)
			}
			rec, err := newRecord(entity)
			if err != nil {
				return err
			}
			if err = json.Unmarshal(data, rec); err != nil {
				return userErrorf("decode %s: %w", file, err)
			}

			res := a.sess.Provider().CreateOrUpdate(cmd.Context(), entity, rec, update)
			if !res.Success {
				return res.Err
			}
			if a.jsonOut {
				return a.print(cmd.OutOrStdout(), res.Data)
			}
			verb := "Created"
			if update {
				verb = "Updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, entity)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the record")
	cmd.Flags().BoolVar(&update, "update", false, "update the existing record with the id in the file")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entity> <id>",
		Short: "Delete a record by id",
		Args:  userArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntityArg(args[0])
			if err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || id <= 0 {
				return userErrorf("invalid id %q", args[1])
			}

			res := a.sess.Provider().Delete(cmd.Context(), entity, id)
			if !res.Success {
				return res.Err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s/%d\n", entity, id)
			return nil
		},
	}
}

// newRecord returns a pointer to an empty record of entity, to decode a
// payload into.
func newRecord(entity model.Entity) (model.Record, error) {
	switch entity {
	case model.Clients:
		return &model.Client{}, nil
	case model.Samples:
		return &model.Sample{}, nil
	case model.Users:
		return &model.User{}, nil
	case model.SampleTypes:
		return &model.SampleType{}, nil
	case model.AnalysisTypes:
		return &model.AnalysisType{}, nil
	case model.Baths:
		return &model.Bath{}, nil
	case model.Centers:
		return &model.Center{}, nil
	case model.SamplingEntities:
		return &model.SamplingEntity{}, nil
	case model.DeliveryEntities:
		return &model.DeliveryEntity{}, nil
	case model.Formats:
		return &model.Format{}, nil
	case model.Countries:
		return &model.Country{}, nil
	case model.Provinces:
		return &model.Province{}, nil
	case model.Municipalities:
		return &model.Municipality{}, nil
	case model.PaymentMethods:
		return &model.PaymentMethod{}, nil
	case model.Rates:
		return &model.Rate{}, nil
	}
	return nil, fmt.Errorf("%w: %s", model.ErrUnknownEntity, entity)
}

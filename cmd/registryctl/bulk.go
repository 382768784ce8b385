package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jacksonlee411/registry-console/modules/registry/infrastructure/spreadsheet"
	registryservices "github.com/jacksonlee411/registry-console/modules/registry/services"
)

func newImportCmd(a *app) *cobra.Command {
	var registry, file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import the first sheet of a workbook into a registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.registry(registry)
			if err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			sheetRows, err := spreadsheet.ReadRows(f)
			if err != nil {
				return err
			}
			rows := make([]map[string]any, 0, len(sheetRows))
			for _, row := range sheetRows {
				rows = append(rows, registryservices.FromSheetRow(svc.Schema(), row))
			}

			out := cmd.OutOrStdout()
			done, err := svc.Import(cmd.Context(), a.actor(), rows, func(done, total int) {
				fmt.Fprintf(out, "imported %d/%d\n", done, total)
			})
			if err != nil {
				if _, ok := registryservices.AsPartial(err); ok {
					fmt.Fprintf(out, "stopped after %d committed records\n", done)
				}
				return err
			}
			fmt.Fprintf(out, "%s: %d records imported\n", registry, done)
			return nil
		},
	}
	cmd.Flags().StringVarP(&registry, "registry", "r", "", "registry name")
	cmd.Flags().StringVarP(&file, "file", "f", "", "xlsx workbook to import")
	_ = cmd.MarkFlagRequired("registry")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var registry, outPath string
	var filters []string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a registry, optionally filtered, to a workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.registry(registry)
			if err != nil {
				return err
			}
			filter, err := parseFilters(filters)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			records, err := svc.Export(cmd.Context(), a.actor(), filter, func(loaded, total int) {
				fmt.Fprintf(out, "loaded %d/%d\n", loaded, total)
			})
			if err != nil {
				return err
			}

			schema := svc.Schema()
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, registryservices.ToSheetRow(schema, rec))
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := spreadsheet.WriteRows(f, schema.Title, schema.Headers(), rows); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %d records written to %s\n", registry, len(records), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&registry, "registry", "r", "", "registry name")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "xlsx file to write")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "field=value filter (repeatable)")
	_ = cmd.MarkFlagRequired("registry")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newDeleteAllCmd(a *app) *cobra.Command {
	var registry string
	var yes, yesReally bool
	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every record of a registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes || !yesReally {
				return errors.New("delete-all needs both --yes and --yes-really")
			}
			svc, err := a.registry(registry)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			deleted, err := svc.DeleteAll(cmd.Context(), a.actor(), func(deleted int) {
				fmt.Fprintf(out, "deleted %d\n", deleted)
			})
			if err != nil {
				if _, ok := registryservices.AsPartial(err); ok {
					fmt.Fprintf(out, "stopped after %d deleted records\n", deleted)
				}
				return err
			}
			fmt.Fprintf(out, "%s: %d records deleted\n", registry, deleted)
			return nil
		},
	}
	cmd.Flags().StringVarP(&registry, "registry", "r", "", "registry name")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	cmd.Flags().BoolVar(&yesReally, "yes-really", false, "confirm deletion a second time")
	_ = cmd.MarkFlagRequired("registry")
	return cmd
}

func parseFilters(raw []string) (registryservices.Filter, error) {
	f := registryservices.Filter{}
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("filter %q must be field=value", kv)
		}
		f[k] = v
	}
	return f, nil
}

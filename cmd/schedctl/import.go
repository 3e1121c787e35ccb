package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"scheduling-api/internal"
	"scheduling-api/internal/config"
	"scheduling-api/internal/handlers"
	"scheduling-api/internal/scheduling"
	"scheduling-api/pkg/spreadsheet"
)

func importCmd() *cobra.Command {
	var (
		company, project, mappingPath string
		dryRun                        bool
		maxErrors                     int
	)
	cmd := &cobra.Command{
		Use:   "import [file.xlsx]",
		Short: "Import tasks from an Excel workbook into a project",
		Long: `Create one task per workbook row in an existing project, in sheet order.

The store is chosen by STORE_DRIVER and DB_DSN, as for the API server.

Examples:
  schedctl import plan.xlsx --company Acme --project Bridge
  schedctl import plan.xlsx --company Acme --project Bridge --mapping configs/mapping.yaml --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAndValidate()
			if err != nil {
				return err
			}

			mapping := spreadsheet.DefaultMapping()
			if mappingPath != "" {
				if mapping, err = spreadsheet.LoadMapping(mappingPath); err != nil {
					return err
				}
			}

			st, err := internal.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			svc := scheduling.NewService(st, scheduling.WithDefaultTimezone(cfg.DefaultTimezone))

			p, err := svc.Project(cmd.Context(), company, project)
			if err != nil {
				return err
			}

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open workbook: %w", err)
			}
			defer file.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Importing %s into %s/%s (dry_run=%v)\n", args[0], company, p.Name, dryRun)
			fmt.Fprintln(out, strings.Repeat("=", 60))

			sum, err := spreadsheet.ImportTasks(cmd.Context(), file, handlers.ProjectSink{Tasks: svc, Company: company, Project: p.Name}, spreadsheet.ImportOptions{
				Mapping:   mapping,
				Location:  p.Location(),
				DryRun:    dryRun,
				MaxErrors: maxErrors,
			})
			fmt.Fprintf(out, "Sheet: %s\n", sum.Sheet)
			fmt.Fprintf(out, "Inserted: %d\n", sum.Inserted)
			fmt.Fprintf(out, "Skipped: %d\n", sum.Skipped)
			fmt.Fprintf(out, "Errors: %d\n", sum.Errors)
			for _, s := range sum.Samples {
				fmt.Fprintf(out, "  Row %d: %s\n", s.Row, s.Message)
			}
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&company, "company", "c", "", "company owning the project")
	cmd.Flags().StringVarP(&project, "project", "p", "", "target project name")
	cmd.Flags().StringVar(&mappingPath, "mapping", "", "YAML column mapping")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate rows without creating tasks")
	cmd.Flags().IntVar(&maxErrors, "max-errors", 50, "abort after this many row errors")
	cmd.MarkFlagRequired("company")
	cmd.MarkFlagRequired("project")
	return cmd
}

// Command registryctl runs sequence maintenance against the registry database
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/amirphl/estate-registry/app/dto"
	businessflow "github.com/amirphl/estate-registry/business_flow"
	"github.com/amirphl/estate-registry/config"
	"github.com/amirphl/estate-registry/logger"
	"github.com/amirphl/estate-registry/migrations"
	"github.com/amirphl/estate-registry/repository"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// environment is what every subcommand needs, built lazily so --help works without a database
type environment struct {
	flow  businessflow.SequenceAdminFlow
	sqlDB *sql.DB
	close func()
}

type envFactory func(ctx context.Context) (*environment, error)

func main() {
	if err := newRootCommand(openEnvironment).Execute(); err != nil {
		os.Exit(1)
	}
}

func openEnvironment(ctx context.Context) (*environment, error) {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.Logging, "registryctl")
	if err != nil {
		return nil, err
	}

	db, err := repository.OpenDatabase(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	companyRepo := repository.NewCompanyRepository(db)
	sequenceRepo := repository.NewCompanySequenceRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	tx := repository.NewGormTransactor(db)
	allocator := businessflow.NewSequenceAllocator(companyRepo, sequenceRepo, tx, cfg.Allocation, log)
	flow := businessflow.NewSequenceAdminFlow(companyRepo, sequenceRepo, auditRepo, allocator, tx, log,
		repository.NewClientUserRepository(db),
		repository.NewMarketerUserRepository(db),
	)

	return &environment{
		flow:  flow,
		sqlDB: sqlDB,
		close: func() {
			_ = log.Sync()
			_ = sqlDB.Close()
		},
	}, nil
}

func newRootCommand(open envFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "registryctl",
		Short:         "Maintenance commands for per-company sequence counters",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newMigrateCommand(open),
		newBackfillCommand(open),
		newRepairCommand(open),
		newAuditCommand(open),
		newExportAuditCommand(open),
	)
	return root
}

// withEnvironment opens the environment for the duration of fn
func withEnvironment(cmd *cobra.Command, open envFactory, fn func(env *environment) error) error {
	env, err := open(cmd.Context())
	if err != nil {
		return err
	}
	if env.close != nil {
		defer env.close()
	}
	return fn(env)
}

func cliMetadata() *businessflow.ClientMetadata {
	return businessflow.NewClientMetadata("", "registryctl")
}

func optionalCompany(cmd *cobra.Command, id uint) *uint {
	if !cmd.Flags().Changed("company") {
		return nil
	}
	return &id
}

func newMigrateCommand(open envFactory) *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnvironment(cmd, open, func(env *environment) error {
				var (
					names []string
					err   error
				)
				if status {
					names, err = migrations.Pending(cmd.Context(), env.sqlDB)
				} else {
					names, err = migrations.Apply(cmd.Context(), env.sqlDB, zap.NewNop())
				}
				if err != nil {
					return err
				}
				verb := "applied"
				if status {
					verb = "pending"
				}
				cmd.Printf("%d migration(s) %s\n", len(names), verb)
				for _, n := range names {
					cmd.Println("  " + n)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "List pending migrations without applying them")
	return cmd
}

func newBackfillCommand(open envFactory) *cobra.Command {
	var (
		companyID uint
		kinds     []string
	)
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Raise counters to the highest sequence number already stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnvironment(cmd, open, func(env *environment) error {
				res, err := env.flow.Backfill(cmd.Context(), &dto.BackfillRequest{
					CompanyID: optionalCompany(cmd, companyID),
					Kinds:     kinds,
				}, cliMetadata())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "COMPANY\tKIND\tBEFORE\tOBSERVED\tAFTER\tRAISED")
				for _, c := range res.Companies {
					for _, k := range c.Kinds {
						fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%t\n", c.CompanyName, k.Kind, k.Before, k.ObservedMax, k.After, k.Raised)
					}
				}
				if err := w.Flush(); err != nil {
					return err
				}
				cmd.Printf("%d counter(s) raised\n", res.Raised)
				return nil
			})
		},
	}
	cmd.Flags().UintVar(&companyID, "company", 0, "Only backfill this company")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "Counter kinds to backfill (client, marketer)")
	return cmd
}

func newRepairCommand(open envFactory) *cobra.Command {
	var companyID uint
	cmd := &cobra.Command{
		Use:   "repair-uids",
		Short: "Number legacy rows and fill missing company UIDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnvironment(cmd, open, func(env *environment) error {
				res, err := env.flow.RepairUIDs(cmd.Context(), &dto.RepairUIDsRequest{
					CompanyID: optionalCompany(cmd, companyID),
				}, cliMetadata())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "COMPANY\tPREFIX\tKIND\tNUMBERED\tUIDS")
				for _, c := range res.Companies {
					for _, k := range c.Kinds {
						fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", c.CompanyName, c.Prefix, k.Kind, k.Numbered, k.UIDsAssigned)
					}
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().UintVar(&companyID, "company", 0, "Only repair this company")
	return cmd
}

func newAuditCommand(open envFactory) *cobra.Command {
	var (
		companyID uint
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare counters with stored sequence numbers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnvironment(cmd, open, func(env *environment) error {
				res, err := env.flow.Audit(cmd.Context(), &dto.SequenceAuditRequest{CompanyID: optionalCompany(cmd, companyID)})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "COMPANY\tPREFIX\tKIND\tCOUNTER\tMAX\tCOUNT\tMISSING_UIDS\tUNNUMBERED\tSTATUS")
				for _, it := range res.Items {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
						it.CompanyName, it.Prefix, it.Kind, it.CounterValue, it.MaxSequence, it.EntityCount, it.MissingUIDs, it.UnnumberedRows, it.Status)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				if !res.Healthy {
					return fmt.Errorf("sequence audit found problems")
				}
				return nil
			})
		},
	}
	cmd.Flags().UintVar(&companyID, "company", 0, "Only audit this company")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func newExportAuditCommand(open envFactory) *cobra.Command {
	var (
		companyID uint
		out       string
	)
	cmd := &cobra.Command{
		Use:   "export-audit",
		Short: "Write the sequence audit to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnvironment(cmd, open, func(env *environment) error {
				filename, data, err := env.flow.ExportAudit(cmd.Context(), &dto.SequenceAuditRequest{CompanyID: optionalCompany(cmd, companyID)})
				if err != nil {
					return err
				}
				if out == "" {
					out = filename
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", out, err)
				}
				cmd.Printf("audit written to %s\n", out)
				return nil
			})
		},
	}
	cmd.Flags().UintVar(&companyID, "company", 0, "Only export this company")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path, defaults to the generated file name")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

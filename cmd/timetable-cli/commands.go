package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/csvio"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/export"
	"github.com/noah-isme/timetable-api/pkg/logger"
)

type sheetFlags struct {
	rooms        string
	teachers     string
	courses      string
	preferences  string
	timings      string
	standardLabs []string
}

func (f *sheetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.rooms, "rooms", "", "room sheet (Room Number, Capacity, Type)")
	cmd.Flags().StringVar(&f.teachers, "teachers", "", "teacher sheet (Initial, Name, Email)")
	cmd.Flags().StringVar(&f.courses, "courses", "", "course sheet (Code, Title, Credits)")
	cmd.Flags().StringVar(&f.preferences, "preferences", "", "optional preference sheet")
	cmd.Flags().StringVar(&f.timings, "timings", "", "optional teaching window sheet")
	cmd.Flags().StringSliceVar(&f.standardLabs, "standard-labs", nil, "L-suffixed lab course codes that meet for one slot (STANDARD) instead of two")
	_ = cmd.MarkFlagRequired("rooms")
	_ = cmd.MarkFlagRequired("teachers")
	_ = cmd.MarkFlagRequired("courses")
}

// load opens every named sheet and builds the scheduling snapshot.
func (f *sheetFlags) load() (scheduler.Input, error) {
	var src csvio.Sources
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	open := func(path string, dst *io.Reader) error {
		if path == "" {
			return nil
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		closers = append(closers, file)
		*dst = file
		return nil
	}
	for _, sheet := range []struct {
		path string
		dst  *io.Reader
	}{
		{f.rooms, &src.Rooms},
		{f.teachers, &src.Teachers},
		{f.courses, &src.Courses},
		{f.preferences, &src.Preferences},
		{f.timings, &src.Timings},
	} {
		if err := open(sheet.path, sheet.dst); err != nil {
			return scheduler.Input{}, err
		}
	}

	labs := f.standardLabs
	if len(labs) == 0 {
		if cfg, err := config.Load(); err == nil {
			labs = cfg.Imports.StandardLabCodes
		}
	}
	return csvio.BuildInput(src, labs)
}

func newRootCmd(out io.Writer) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "timetable",
		Short:         "Offline course timetable generator",
		Long:          "Builds a class timetable from CSV sheets using the same engine and policy as the API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.SetOut(out)

	root.AddCommand(newRunCmd(out, &logLevel))
	root.AddCommand(newValidateCmd(out))
	root.AddCommand(newTokenCmd(out))
	return root
}

func newRunCmd(out io.Writer, logLevel *string) *cobra.Command {
	var (
		sheets  sheetFlags
		seed    int64
		output  string
		format  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "generate a timetable from CSV sheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			logr, err := logger.NewCLI(*logLevel)
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			in, err := sheets.load()
			if err != nil {
				return err
			}

			policy := scheduler.DefaultPolicy()
			if cfg, err := config.Load(); err == nil {
				if policy, err = service.PolicyFromConfig(cfg.Scheduler.Policy); err != nil {
					return err
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			engine := scheduler.NewEngine(policy, validator.New(), logr.Named("scheduler"))
			result, err := engine.Run(ctx, in, scheduler.Options{Seed: seed, Rebuild: true})
			if err != nil {
				return err
			}

			rows := csvio.TimetableRows(csvio.Details(in, result.Placeholder, result.Assignments))
			if output != "" {
				payload, err := render(format, output, rows)
				if err != nil {
					return err
				}
				if err := os.WriteFile(output, payload, 0o644); err != nil {
					return err
				}
				logr.Info("timetable written", zap.String("path", output), zap.Int("rows", len(rows)))
			}
			printReport(out, result.Report)
			return nil
		},
	}
	sheets.register(cmd)
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed; equal seeds over equal sheets give equal timetables")
	cmd.Flags().StringVarP(&output, "out", "o", "", "write the timetable to this file")
	cmd.Flags().StringVar(&format, "format", "", "output format (csv or pdf); inferred from --out when empty")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "abort the run after this long")
	return cmd
}

func render(format, path string, rows []csvio.TimetableRow) ([]byte, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch strings.ToLower(format) {
	case "pdf":
		subtitle := fmt.Sprintf("Generated %s UTC, %d meetings", time.Now().UTC().Format("2006-01-02 15:04"), len(rows))
		return export.NewPDFExporter().Render(csvio.Dataset(rows), "Class Timetable", subtitle)
	case "csv", "":
		return export.NewCSVExporter().Render(rows)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

func printReport(out io.Writer, rep scheduler.Report) {
	fmt.Fprintf(out, "run %s (seed %d)\n", rep.RunID, rep.Seed)
	fmt.Fprintf(out, "groups: %d total, %d scheduled, %d placeholder, %d pending\n",
		rep.TotalGroups, rep.ScheduledGroups, rep.PlaceholderGroups, rep.PendingGroups)
	fmt.Fprintf(out, "sections: %d total, %d scheduled, %d placeholder, %d pending\n",
		rep.TotalSections, rep.ScheduledSections, rep.PlaceholderSections, rep.PendingSections)
	fmt.Fprintf(out, "assignment records: %d\n", rep.AssignmentRecords)
	fmt.Fprintf(out, "quality: overall %.2f, min %.2f, variance %.4f\n", rep.OverallQuality, rep.MinQuality, rep.QualityVariance)
}

func newValidateCmd(out io.Writer) *cobra.Command {
	var sheets sheetFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "parse the CSV sheets without scheduling",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := sheets.load()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "ok: %d rooms, %d teachers, %d courses, %d sections, %d preferences, %d timings\n",
				len(in.Rooms), len(in.Teachers), len(in.Courses), len(in.Sections), len(in.Preferences), len(in.Timings))
			return nil
		},
	}
	sheets.register(cmd)
	return cmd
}

func newTokenCmd(out io.Writer) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
		secret  string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "mint an access token for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenCfg := service.TokenConfig{Secret: secret}
			if cfg, err := config.Load(); err == nil {
				if tokenCfg.Secret == "" {
					tokenCfg.Secret = cfg.JWT.Secret
				}
				tokenCfg.Expiry = cfg.JWT.Expiration
			}
			if tokenCfg.Secret == "" {
				return fmt.Errorf("no signing secret: set JWT_SECRET or pass --secret")
			}

			token, expiresAt, err := service.NewTokenService(tokenCfg).Issue(subject, models.UserRole(strings.ToUpper(role)), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime; defaults to JWT_EXPIRATION")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret; defaults to JWT_SECRET")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

// schedctl is the on-demand caller for the scheduling engines: it tops up
// recurring series, predicts durations, checks conflicts, and suggests
// crews, printing JSON for whatever dispatch surface sits above it.
package main

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arborworks/crew-scheduler-go/pkg/config"
	"github.com/arborworks/crew-scheduler-go/pkg/conflict"
	"github.com/arborworks/crew-scheduler-go/pkg/crew"
	"github.com/arborworks/crew-scheduler-go/pkg/database"
	"github.com/arborworks/crew-scheduler-go/pkg/duration"
	"github.com/arborworks/crew-scheduler-go/pkg/models"
	"github.com/arborworks/crew-scheduler-go/pkg/recurrence"
	"github.com/arborworks/crew-scheduler-go/pkg/series"
)

func main() {
	// Load .env if it exists. Try root and parent directories for
	// flexibility.
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		a          app
	)

	root := &cobra.Command{
		Use:           "schedctl",
		Short:         "Scheduling and crew allocation engine",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				level = zerolog.InfoLevel
			}
			a.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
				Level(level).With().Timestamp().Logger()

			a.cfg, err = config.Load(configPath)
			return err
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "policy config file (yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newGenerateCmd(&a))
	root.AddCommand(newPredictCmd(&a))
	root.AddCommand(newConflictsCmd(&a))
	root.AddCommand(newSuggestCmd(&a))
	return root
}

func newGenerateCmd(a *app) *cobra.Command {
	var todayFlag string
	cmd := &cobra.Command{
		Use:   "generate <series-id>",
		Short: "Top up a series' occurrences to the horizon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			today, err := parseDateFlag(todayFlag)
			if err != nil {
				return err
			}
			db := database.InitDB()
			store := &database.SeriesStore{DB: db}
			engine := recurrence.NewEngine(a.cfg.Recurrence.MaxIterations)
			svc := series.NewService(store, engine, a.cfg.Recurrence.HorizonDays, a.log)

			dates, err := svc.TopUp(args[0], today)
			if err != nil {
				return err
			}
			out := make([]string, 0, len(dates))
			for _, d := range dates {
				out = append(out, models.FormatDate(d))
			}
			return printJSON(map[string]any{"series_id": args[0], "new_dates": out})
		},
	}
	cmd.Flags().StringVar(&todayFlag, "today", "", "reference date (default: current date)")
	return cmd
}

func newPredictCmd(a *app) *cobra.Command {
	var (
		service  string
		height   float64
		diameter float64
		hazard   string
		crewSize int
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Estimate job duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			db := database.InitDB()
			predictor := duration.NewPredictor(&database.HistoryStore{DB: db}, a.cfg.Duration)
			est, err := predictor.Predict(
				models.ServiceType(service),
				duration.SizeInputs{HeightFt: height, TrunkDiameterIn: diameter},
				models.HazardLevel(hazard),
				crewSize,
			)
			if err != nil {
				return err
			}
			return printJSON(est)
		},
	}
	cmd.Flags().StringVar(&service, "service", "removal", "service type")
	cmd.Flags().Float64Var(&height, "height", 0, "tree height in feet")
	cmd.Flags().Float64Var(&diameter, "diameter", 0, "trunk diameter in inches")
	cmd.Flags().StringVar(&hazard, "hazard", "medium", "hazard level")
	cmd.Flags().IntVar(&crewSize, "crew", 3, "crew size")
	return cmd
}

func newConflictsCmd(a *app) *cobra.Command {
	var flags requestFlags
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Detect double-bookings for a proposed job",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.toRequest()
			if err != nil {
				return err
			}
			db := database.InitDB()
			detector := conflict.NewDetector(&database.ScheduleStore{DB: db}, a.cfg.Conflict)
			conflicts, err := detector.Detect(req)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"conflicts": conflicts, "count": len(conflicts)})
		},
	}
	flags.register(cmd)
	return cmd
}

func newSuggestCmd(a *app) *cobra.Command {
	var flags requestFlags
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Rank available crew for a proposed job",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.toRequest()
			if err != nil {
				return err
			}
			db := database.InitDB()
			detector := conflict.NewDetector(&database.ScheduleStore{DB: db}, a.cfg.Conflict)
			optimizer := crew.NewOptimizer(&database.RosterStore{DB: db}, detector, a.cfg.Scoring)
			suggestion, err := optimizer.SuggestCrew(req)
			if err != nil {
				return err
			}
			return printJSON(suggestion)
		},
	}
	flags.register(cmd)
	return cmd
}

// requestFlags are the shared flags that build a SchedulingRequest.
type requestFlags struct {
	date      string
	start     string
	end       string
	crewIDs   []string
	equipment []string
	hazard    string
	skills    []string
	service   string
	size      int
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "proposed date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.start, "start", "", "start time (HH:MM)")
	cmd.Flags().StringVar(&f.end, "end", "", "end time (HH:MM)")
	cmd.Flags().StringSliceVar(&f.crewIDs, "crew", nil, "crew member ids")
	cmd.Flags().StringSliceVar(&f.equipment, "equipment", nil, "equipment ids")
	cmd.Flags().StringVar(&f.hazard, "hazard", "", "hazard level")
	cmd.Flags().StringSliceVar(&f.skills, "skills", nil, "required skills")
	cmd.Flags().StringVar(&f.service, "service", "", "service type")
	cmd.Flags().IntVar(&f.size, "size", 0, "preferred crew size")
	_ = cmd.MarkFlagRequired("date")
}

func (f *requestFlags) toRequest() (models.SchedulingRequest, error) {
	date, err := models.ParseDate(f.date)
	if err != nil {
		return models.SchedulingRequest{}, err
	}
	req := models.SchedulingRequest{
		Date:              date,
		CrewMemberIDs:     f.crewIDs,
		EquipmentIDs:      f.equipment,
		HazardLevel:       models.HazardLevel(f.hazard),
		PreferredCrewSize: f.size,
		ServiceType:       models.ServiceType(f.service),
	}
	if req.Window.Start, err = parseClock(date, f.start); err != nil {
		return models.SchedulingRequest{}, err
	}
	if req.Window.End, err = parseClock(date, f.end); err != nil {
		return models.SchedulingRequest{}, err
	}
	for _, s := range f.skills {
		cred, err := models.NormalizeCredential(s)
		if err != nil {
			return models.SchedulingRequest{}, err
		}
		req.RequiredSkills = append(req.RequiredSkills, cred)
	}
	return req, nil
}

// parseClock combines a civil date with an HH:MM clock value. Empty input
// stays nil; conflict detection treats that conservatively.
func parseClock(date time.Time, clock string) (*time.Time, error) {
	clock = strings.TrimSpace(clock)
	if clock == "" {
		return nil, nil
	}
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return nil, &models.ValidationError{Field: "time", Reason: "expected HH:MM, got " + clock}
	}
	t := time.Date(date.Year(), date.Month(), date.Day(), parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
	return &t, nil
}

func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		return models.DateOnly(time.Now()), nil
	}
	return models.ParseDate(s)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// stockroom-bench drives an Admin through a synthetic workload and reports
// timings, optionally under a CPU or memory profiler.
//
// Profiling:
// go build ./cmd/stockroom-bench
// ./stockroom-bench run --profile mem
// go tool pprof -http=":8000" ./stockroom-bench mem.pprof
package main

import (
	"os"

	"github.com/JeremyLoy/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type Config struct {
	Entities int    `config:"STOCKROOM_ENTITIES"`
	Ticks    int    `config:"STOCKROOM_TICKS"`
	Profile  string `config:"STOCKROOM_PROFILE"`
	Debug    bool   `config:"STOCKROOM_DEBUG"`
}

func loadConfig() (Config, error) {
	cfg := Config{
		Entities: 10_000,
		Ticks:    1_000,
		Profile:  "none",
	}
	err := config.FromEnv().To(&cfg)
	return cfg, err
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config from environment")
	}
	if err := newRootCmd(&cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "stockroom-bench",
		Short: "Exercise a stockroom admin with a synthetic workload",
		PersistentPreRun: func(*cobra.Command, []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if cfg.Debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "log admin internals")
	root.AddCommand(newRunCmd(cfg))
	return root
}

func newRunCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Populate an admin, run its systems and churn entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stop, err := startProfile(cfg.Profile)
			if err != nil {
				return err
			}
			defer stop()

			report, err := run(cfg.Entities, cfg.Ticks, log.Logger)
			if err != nil {
				return err
			}
			report.log(log.Logger)
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.Entities, "entities", cfg.Entities, "entities to create")
	cmd.Flags().IntVar(&cfg.Ticks, "ticks", cfg.Ticks, "times to run the update layer")
	cmd.Flags().StringVar(&cfg.Profile, "profile", cfg.Profile, "profiler to run: cpu, mem or none")
	return cmd
}

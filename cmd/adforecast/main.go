package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AngelCh415/adforecast/internal/config"
	"github.com/AngelCh415/adforecast/internal/modelstore"
	"github.com/AngelCh415/adforecast/internal/predictor"
	"github.com/AngelCh415/adforecast/internal/store"
	"github.com/AngelCh415/adforecast/internal/synth"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "adforecast",
		Short:         "Forecast ad-account CTR, CR, CPC and spend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log training progress to stderr")

	logger := func() *slog.Logger {
		lvl := slog.LevelWarn
		if verbose {
			lvl = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	}

	root.AddCommand(generateCmd(), trainCmd(logger), predictCmd(), statsCmd())
	return root
}

func generateCmd() *cobra.Command {
	var (
		days   int
		seed   int64
		outP   string
		influx bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic daily history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			recs := synth.Generate(days, seed)
			sinks := []synth.Sink{synth.FileSink{Path: outP}}
			if influx {
				cfg := config.FromEnv()
				if cfg.InfluxURL == "" {
					return fmt.Errorf("--influx needs INFLUXDB_URL")
				}
				in := store.NewInfluxStore(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
				defer in.Close()
				sinks = append(sinks, in)
			}
			for _, s := range sinks {
				if err := s.WriteRecords(ctx, recs); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d days to %s\n", len(recs), outP)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 365, "Number of days to generate")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	cmd.Flags().StringVar(&outP, "out", "historical_data.json", "Output JSON file")
	cmd.Flags().BoolVar(&influx, "influx", false, "Also write the history to InfluxDB (INFLUXDB_* env)")
	return cmd
}

func trainCmd(logger func() *slog.Logger) *cobra.Command {
	var (
		in    string
		model string
		trees int
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model on a history file and save it",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := synth.ReadFile(in)
			if err != nil {
				return err
			}
			cfg := predictor.DefaultTrainConfig()
			cfg.Forest.NumTrees = trees
			cfg.Forest.Seed = seed
			cfg.Logger = logger()

			st := predictor.NewModelState()
			stats, err := predictor.Train(st, recs, cfg)
			if err != nil {
				return err
			}
			if err := saveModel(cmd.Context(), model, st); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().StringVar(&in, "in", "historical_data.json", "History JSON file")
	cmd.Flags().StringVar(&model, "model", "model.json", "Model file")
	cmd.Flags().IntVar(&trees, "trees", 100, "Trees per regressor")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Forest seed")
	return cmd
}

func predictCmd() *cobra.Command {
	var (
		in       string
		model    string
		days     int
		appendTo bool
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Forecast the days after a history file",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := synth.ReadFile(in)
			if err != nil {
				return err
			}
			st, err := loadModel(cmd.Context(), model)
			if err != nil {
				return err
			}
			fc, err := predictor.PredictNextDays(st, recs, days)
			if err != nil {
				return err
			}
			if appendTo {
				all, err := predictor.AugmentHistory(recs, fc)
				if err != nil {
					return err
				}
				if err := (synth.FileSink{Path: in}).WriteRecords(cmd.Context(), all); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), fc)
		},
	}
	cmd.Flags().StringVar(&in, "in", "historical_data.json", "History JSON file")
	cmd.Flags().StringVar(&model, "model", "model.json", "Model file")
	cmd.Flags().IntVar(&days, "days", 7, "Days to forecast")
	cmd.Flags().BoolVar(&appendTo, "append", false, "Append the forecast to the history file as raw records")
	return cmd
}

func statsCmd() *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the statistics of a saved model",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadModel(cmd.Context(), model)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st.Snapshot())
		},
	}
	cmd.Flags().StringVar(&model, "model", "model.json", "Model file")
	return cmd
}

// modelFile maps a model path onto a file store and key.
func modelFile(p string) (*modelstore.File, string, error) {
	fs, err := modelstore.NewFile(filepath.Dir(p))
	if err != nil {
		return nil, "", err
	}
	return fs, strings.TrimSuffix(filepath.Base(p), ".json"), nil
}

func saveModel(ctx context.Context, p string, st *predictor.ModelState) error {
	blob, err := predictor.MarshalState(st)
	if err != nil {
		return err
	}
	fs, key, err := modelFile(p)
	if err != nil {
		return err
	}
	return fs.Save(ctx, key, blob)
}

func loadModel(ctx context.Context, p string) (*predictor.ModelState, error) {
	fs, key, err := modelFile(p)
	if err != nil {
		return nil, err
	}
	blob, err := fs.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", p, err)
	}
	return predictor.UnmarshalState(blob)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

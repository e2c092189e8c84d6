// ============================================================================
// TrialMesh CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Command line interface for running and joining a trial-dispatch
// optimization, based on the Cobra framework
//
// Command Structure:
//   trialmesh                       # Root command
//   ├── run                        # Drive an optimization
//   │   └── --config, -c          # Specify config file
//   │   └── --mode                # local, cluster, or coordinator
//   │   └── --listen              # gRPC listen address (coordinator mode)
//   ├── worker                     # Join a coordinator as a remote worker
//   │   └── --master              # Coordinator address
//   │   └── --start               # First trial ID to compete for
//   │   └── --count               # Number of sequential trial IDs
//   ├── --version                  # Display version information
//   └── --help                     # Display help information
//
// Configuration Management:
//   Uses YAML format config file (default: configs/default.yaml).
//   Configuration items include:
//   - study: objective direction and sampler seed
//   - run: trial count, concurrency, timeout, interrupt patience
//   - objective: the built-in demonstration objective's search space
//   - distributed: heartbeat interval for the cluster manager
//   - metrics: Prometheus monitoring configuration
//
// run Command:
//   1. Load config file
//   2. Build a Study (in-memory storage, random sampler)
//   3. Pick a manager backend per --mode
//   4. Start the metrics HTTP server, if enabled
//   5. Drive distrial.Optimize, reporting the best trial on exit
//
// worker Command:
//   Dials a running coordinator over gRPC and calls
//   internal/manager/distributed.Distributable directly for each trial ID
//   in range, competing with the coordinator's own in-process submission
//   for whichever trials haven't been claimed yet (see
//   internal/manager/distributed.TaskFor).
//
// ============================================================================

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"gopkg.in/yaml.v3"

	trialmesh "github.com/trialmesh/trialmesh"
	"github.com/trialmesh/trialmesh/internal/cluster"
	"github.com/trialmesh/trialmesh/internal/manager/distributed"
	"github.com/trialmesh/trialmesh/internal/metrics"
	"github.com/trialmesh/trialmesh/internal/rpc"
	"github.com/trialmesh/trialmesh/internal/study"
	"github.com/trialmesh/trialmesh/internal/trial"
	"github.com/trialmesh/trialmesh/pkg/types"
)

var log = slog.Default()

// Config is the complete YAML configuration structure.
type Config struct {
	Study struct {
		Direction string `yaml:"direction"`
		Seed      int64  `yaml:"seed"`
	} `yaml:"study"`

	Run struct {
		NTrials                  int  `yaml:"n_trials"`
		NJobs                    int  `yaml:"n_jobs"`
		TimeoutSeconds           int  `yaml:"timeout_seconds"`
		InterruptPatienceSeconds int  `yaml:"interrupt_patience_seconds"`
		ShowProgressBar          bool `yaml:"show_progress_bar"`
	} `yaml:"run"`

	Objective struct {
		Dimensions int     `yaml:"dimensions"`
		Low        float64 `yaml:"low"`
		High       float64 `yaml:"high"`
	} `yaml:"objective"`

	Distributed struct {
		HeartbeatSeconds int `yaml:"heartbeat_seconds"`
	} `yaml:"distributed"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

var configFile string

// BuildCLI assembles the trialmesh command tree.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "trialmesh",
		Short: "TrialMesh: a distributed trial dispatch and mediation core",
		Long: `TrialMesh distributes the evaluation of a user-supplied objective
across local goroutines or a cluster of remote workers, while keeping the
study's trials, sampler, and pruner state single-writer and consistent.`,
		Version: "0.1.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildWorkerCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	var mode string
	var listen string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an optimization",
		Long:  "Drive an optimization using the local, cluster, or coordinator backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimization(mode, listen)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "local", "Manager backend: local, cluster, or coordinator")
	cmd.Flags().StringVar(&listen, "listen", ":50061", "gRPC listen address (coordinator mode only)")

	return cmd
}

func runOptimization(mode, listen string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log.Info("starting optimization", "mode", mode, "n_trials", cfg.Run.NTrials)

	var recorder metrics.Recorder = metrics.Nop{}
	if cfg.Metrics.Enabled {
		recorder = metrics.NewCollector()
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				log.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	st := newStudy(cfg)
	objective := sphereObjective(cfg.Objective.Dimensions, cfg.Objective.Low, cfg.Objective.High)

	var client cluster.Client
	switch mode {
	case "local":
		client = nil
	case "cluster":
		client = cluster.NewLocalClient()
	case "coordinator":
		coord := rpc.NewCoordinator()
		lis, err := net.Listen("tcp", listen)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", listen, err)
		}
		grpcServer := grpc.NewServer()
		rpc.RegisterQueueTransportServer(grpcServer, coord)
		go func() {
			log.Info("coordinator listening", "addr", listen)
			if err := grpcServer.Serve(lis); err != nil {
				log.Error("coordinator server stopped", "error", err)
			}
		}()
		defer grpcServer.GracefulStop()
		client = coord.Client()
	default:
		return fmt.Errorf("unknown mode %q: want local, cluster, or coordinator", mode)
	}

	ds := trialmesh.FromStudy(st, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("received interrupt, stopping")
		cancel()
	}()

	optCfg := trialmesh.OptimizeConfig{
		NTrials:           cfg.Run.NTrials,
		NJobs:             cfg.Run.NJobs,
		Timeout:           time.Duration(cfg.Run.TimeoutSeconds) * time.Second,
		InterruptPatience: time.Duration(cfg.Run.InterruptPatienceSeconds) * time.Second,
		ShowProgressBar:   cfg.Run.ShowProgressBar,
		DistributedConfig: distributed.Config{
			HeartbeatInterval: time.Duration(cfg.Distributed.HeartbeatSeconds) * time.Second,
		},
		Metrics: recorder,
	}
	if mode == "coordinator" {
		optCfg.PublicQueueName = sharedPublicQueueName
	}

	if err := ds.Optimize(ctx, objective, optCfg); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}

	best, err := ds.BestTrial()
	if err != nil {
		log.Warn("no completed trial to report", "error", err)
		return nil
	}
	log.Info("optimization finished", "best_trial", best.Number, "best_values", best.Values, "params", best.Params)
	return nil
}

func buildWorkerCommand() *cobra.Command {
	var masterAddr string
	var startID int64
	var count int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Join a coordinator as a remote worker",
		Long:  "Dial a coordinator and compete for unclaimed trials in the given ID range",
		RunE: func(cmd *cobra.Command, args []string) error {
			if masterAddr == "" {
				return fmt.Errorf("master address is required (use --master)")
			}
			return runWorker(masterAddr, startID, count)
		},
	}

	cmd.Flags().StringVar(&masterAddr, "master", "", "Coordinator gRPC address")
	cmd.Flags().Int64Var(&startID, "start", 0, "First trial ID to compete for")
	cmd.Flags().IntVar(&count, "count", 100, "Number of sequential trial IDs to compete for")

	return cmd
}

func runWorker(masterAddr string, startID int64, count int) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log.Info("connecting to coordinator", "addr", masterAddr)
	conn, err := grpc.NewClient(masterAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to coordinator: %w", err)
	}
	defer conn.Close()

	transport := rpc.NewQueueTransportClient(conn)
	client := cluster.NewGRPCClient(conn, transport)
	objective := sphereObjective(cfg.Objective.Dimensions, cfg.Objective.Low, cfg.Objective.High)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("received interrupt, stopping worker")
		cancel()
	}()

	log.Info("competing for trials", "start", startID, "count", count)
	for i := 0; i < count; i++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		id := types.TrialID(startID + int64(i))
		task := distributed.TaskFor(id)
		if err := distributed.Distributable(ctx, client, task, sharedPublicQueueName, objective); err != nil {
			log.Warn("trial exited with error", "trial", id, "error", err)
		}
	}
	return nil
}

// sharedPublicQueueName is the fixed reply queue name a coordinator run
// and its standalone workers agree on out of band, since the
// hand-written gRPC transport carries only queue/variable names, not a
// registry of active runs a worker could query.
const sharedPublicQueueName = "trialmesh/run/default/public"

func newStudy(cfg *Config) *study.Study {
	direction := study.Minimize
	if cfg.Study.Direction == "maximize" {
		direction = study.Maximize
	}
	return study.New(direction, study.NewInMemoryStorage(), study.NewRandomSampler(cfg.Study.Seed), study.NopPruner{})
}

// sphereObjective is the built-in demonstration objective: minimize the
// sum of squares of dimensions independent uniform parameters, reporting
// an intermediate value after each dimension so pruners have something to
// act on.
func sphereObjective(dimensions int, low, high float64) trial.Objective {
	if dimensions <= 0 {
		dimensions = 2
	}
	if low == 0 && high == 0 {
		low, high = -10, 10
	}
	return func(ctx context.Context, t *trial.Trial) ([]float64, error) {
		sum := 0.0
		for i := 0; i < dimensions; i++ {
			name := fmt.Sprintf("x%d", i)
			x, err := t.Uniform(ctx, name, low, high)
			if err != nil {
				return nil, err
			}
			sum += x * x

			if err := t.Report(sum, int64(i)); err != nil {
				return nil, err
			}
			prune, err := t.ShouldPrune(ctx)
			if err != nil {
				return nil, err
			}
			if prune {
				return nil, trial.ErrPruned
			}
		}
		return []float64{sum}, nil
	}
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return &cfg, nil
}

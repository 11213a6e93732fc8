package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zoobzio/dispatchz"
	"github.com/zoobzio/dispatchz/internal/store"
	itransport "github.com/zoobzio/dispatchz/internal/transport"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a dispatch batch to completion",
	RunE:  runRun,
}

func init() {
	flags := runCmd.Flags()
	flags.String("node-file", "", "node inventory file (hostname, core count per line)")
	flags.String("data-file", "", "task data file (id,arg1,arg2,... per line)")
	flags.String("out-dir", "", "output directory for logs and unfinished_tasks.txt")
	flags.String("program", "", "path to the user program each task invokes")
	flags.Int("program-flag", 1, "task class: 0=maple 1=c_binary 2=python 3=pari 4=sage 5=octave")
	flags.Int("max-task-size-kb", 0, "expected per-task memory footprint in KB (0 = GENERIC mode)")
	flags.Int("mem-safety-margin-kb", 65536, "memory gate safety margin in KB (read into the config; not forwarded to workers, which take their own --mem-safety-margin-kb)")
	flags.Bool("create-slavefile", false, "write node_info.txt at startup")
	flags.Bool("create-errfiles", false, "attach the tail of a failed task's <id>_err.txt to the worker's failure signal (<id>_out.txt/_err.txt are always written)")
	flags.Bool("create-memfiles", false, "passed to workers in the greeting; no <id>_mem.txt file is written")
	flags.Bool("custom-program", false, "program is a custom executable, not a class-standard interpreter target")
	flags.String("worker-program", "", "path to the dispatchz worker binary to spawn on each node")
	flags.String("master-addr", "127.0.0.1:0", "address the master's control listener binds")
	flags.String("metrics-addr", "", "if set, serve Prometheus metrics at /metrics on this address")
	flags.String("config", "", "optional dispatch.yaml config file overlay")
	flags.String("store-path", "", "if set, also record every Result to a SQLite ledger at this path")
	flags.String("ssh-user", "", "SSH user for spawning workers on remote hosts")
	flags.String("ssh-key", "", "SSH private key path for spawning workers on remote hosts")
	flags.String("known-hosts", "", "known_hosts path for SSH host key verification")

	_ = viper.BindPFlags(flags)
	viper.SetEnvPrefix("DISPATCHZ")
	viper.AutomaticEnv()
}

func runRun(cmd *cobra.Command, _ []string) error {
	if cfgPath, _ := cmd.Flags().GetString("config"); cfgPath != "" {
		viper.SetConfigFile(cfgPath)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg, err := dispatchz.LoadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	scratchDir := fmt.Sprintf("%s/dispatchz-%s", os.TempDir(), runID)

	sink := installConsoleSink(os.Stdout, os.Stderr)
	defer sink.Close()

	spawner, err := itransport.NewSpawner(
		viper.GetString("ssh-user"), viper.GetString("ssh-key"), viper.GetString("known-hosts"),
		"localhost", "127.0.0.1",
	)
	if err != nil {
		return err
	}

	master := itransport.NewMasterTransport(viper.GetString("master-addr"), spawner, scratchDir)
	bringup := dispatchz.NewBringup(master)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	hostConfigPath := fmt.Sprintf("%s/hosts", scratchDir)
	nodes, err := dispatchz.LoadNodes(cfg.NodeFile)
	if err != nil {
		return err
	}
	printRunBanner(runID, cfg, nodes)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return dispatchz.NewInputError(dispatchz.ExitCWD, err)
	}
	if err := dispatchz.WriteHostConfig(hostConfigPath, cwd, nodes); err != nil {
		return err
	}

	if err := bringup.Run(ctx, hostConfigPath); err != nil {
		return err
	}

	sched := dispatchz.NewScheduler(cfg.SchedulerConfig(), master, dispatchz.NewPreparer())

	if storePath := viper.GetString("store-path"); storePath != "" {
		ledger, err := store.Open(storePath)
		if err != nil {
			return err
		}
		defer ledger.Close()
		if err := sched.OnResult(func(ctx context.Context, r dispatchz.Result) error {
			return ledger.Record(ctx, r)
		}); err != nil {
			return err
		}
	}

	if addr := viper.GetString("metrics-addr"); addr != "" {
		registry := prometheus.NewRegistry()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: addr, Handler: mux}
		go server.ListenAndServe()
		defer server.Close()
	}

	summary, err := sched.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Combined computing time: %.3fs\n", summary.CombinedCPUTime)
	fmt.Printf("Total execution time: %.3fs\n", summary.WallClockSeconds)
	fmt.Printf("Tasks dispatched: %d, failed: %d\n", summary.TasksDispatched, summary.TasksFailed)
	return nil
}

// printRunBanner prints the startup banner PBala.c prints before spawning
// any task: program name, the full invocation, the three input file paths,
// the output directory, and the node/core roster. SPEC_FULL.md commits to
// carrying this forward verbatim in spirit, ported from PBala.c's
// "PRINCESS BALA v..." / "System call: ..." block.
func printRunBanner(runID string, cfg dispatchz.Config, nodes []dispatchz.Node) {
	prog := os.Args[0]
	fmt.Printf("DISPATCHZ run %s\n", runID)
	fmt.Printf("System call: %s\n\n", strings.Join(os.Args, " "))
	fmt.Printf("%s:: INFO - will use executable %s\n", prog, cfg.ProgramPath)
	fmt.Printf("%s:: INFO - will use datafile %s\n", prog, cfg.DataFile)
	fmt.Printf("%s:: INFO - will use nodefile %s\n", prog, cfg.NodeFile)
	fmt.Printf("%s:: INFO - results will be stored in %s\n\n", prog, cfg.OutDir)

	fmt.Printf("%s:: INFO - will use nodes ", prog)
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = fmt.Sprintf("%s (%d)", n.Hostname, n.Cores)
	}
	fmt.Printf("%s\n", strings.Join(parts, ", "))
	fmt.Printf("%s:: INFO - will use %d slaves across %d nodes\n\n", prog, dispatchz.TotalCores(nodes), len(nodes))
}

func exitCodeFor(err error) int {
	var inputErr *dispatchz.InputError
	if errors.As(err, &inputErr) {
		return int(inputErr.Code)
	}
	var transportErr *dispatchz.TransportError
	if errors.As(err, &transportErr) {
		return int(transportErr.Code)
	}
	return 1
}

// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmware/tpurun/pkg/cliui"
	"github.com/vmware/tpurun/pkg/event"
	"github.com/vmware/tpurun/pkg/inventory"
	"github.com/vmware/tpurun/pkg/plan"
	"github.com/vmware/tpurun/pkg/recorder"
	"github.com/vmware/tpurun/pkg/ssh"
	"github.com/vmware/tpurun/version"
)

// eventBuffer keeps fast hosts from waiting on the presenter.
const eventBuffer = 1024

var errExecutionFailed = errors.New("command failed")

var (
	tpuListFile    string
	tpuType        string
	nodeNumbers    []int
	sshUser        string
	sshPort        int
	connectTimeout int
	identityFile   string
	passwordEnv    string
	knownHosts     string
	stageSpecs     []string
	plainOutput    bool
	pickHost       bool
	saveLogs       bool
	noAutoSave     bool
	logDir         string
)

// NewCommandExecute runs a command on every selected TPU VM concurrently.
// Output is shown live in a terminal dashboard, or as prefixed lines when
// stdout is not a terminal or --plain is given.
func NewCommandExecute() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec [flags] -- <command...>",
		Short: "Execute a command on TPU VMs",
		Long: `Execute a command on TPU VMs listed in the TPU list file.

Every selected VM is connected to at the same time and the command output
is streamed back per VM. The exit status is 0 only if the command exited
with 0 on every VM. When any VM fails, the output of all VMs is appended
to tpurun.log.

Dashboard keys:
  s  save logs now
  q  cancel the run, or quit once it finished
`,
		Example: `  tpurun exec -t v4 -- uptime
  tpurun exec -t v4 -n 0,2 -- 'python3 train.py --steps 100'
  tpurun exec --stage ./setup.sh:/tmp/setup.sh -- bash /tmp/setup.sh`,
		Args: cobra.MinimumNArgs(1),
		RunE: executeCommandFunc,
	}

	flags := cmd.Flags()
	flags.SetInterspersed(false)
	flags.StringVarP(&tpuListFile, "tpu-list", "l", "./"+inventory.DefaultInventoryFilename, "path to the TPU VM list file (JSON or YAML)")
	flags.StringVarP(&tpuType, "type", "t", string(inventory.CategoryAll), fmt.Sprintf("TPU node type, one of %v", inventory.Categories()))
	flags.IntSliceVarP(&nodeNumbers, "nodes", "n", nil, "node numbers to run on, requires --type")
	flags.StringVarP(&sshUser, "user", "u", "", "username to connect as (default: current user)")
	flags.IntVarP(&sshPort, "port", "p", ssh.DefaultPort, "SSH port to connect to")
	flags.IntVarP(&connectTimeout, "timeout", "T", int(ssh.DefaultTimeout/time.Second), "SSH connect timeout in seconds")
	flags.StringVarP(&identityFile, "identity", "i", "", "private key file")
	flags.StringVar(&passwordEnv, "password-env", "", "environment variable holding the SSH password")
	flags.StringVar(&knownHosts, "known-hosts", string(ssh.HostKeyIgnore), fmt.Sprintf("host key policy, one of %v", ssh.HostKeyPolicies))
	flags.StringArrayVar(&stageSpecs, "stage", nil, "upload local[:remote] to every VM before running, repeatable")
	flags.BoolVar(&plainOutput, "plain", false, "print prefixed output lines instead of the dashboard")
	flags.BoolVar(&pickHost, "pick", false, "pick a single VM interactively")
	flags.BoolVar(&saveLogs, "save-logs", false, "always save the output of every VM")
	flags.BoolVar(&noAutoSave, "no-auto-save", false, "do not save logs automatically when a VM fails")
	flags.StringVar(&logDir, "log-dir", ".", "directory of the log file")

	return cmd
}

func executeCommandFunc(cmd *cobra.Command, args []string) error {
	category, hosts, err := selectHosts()
	if err != nil {
		return err
	}

	if pickHost {
		h, err := cliui.PickHost("Select the TPU VM to run on:", hosts)
		if err != nil {
			return fmt.Errorf("no TPU VM selected: %w", err)
		}
		hosts = []inventory.Host{h}
	}

	stage, err := parseStageSpecs(stageSpecs)
	if err != nil {
		return err
	}

	dashboard := !plainOutput && isTerminal(os.Stdout) && isTerminal(os.Stdin)
	logger, tuiHandler := newLogger(dashboard)

	sshCfg, err := sshConfig(logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dialer := &ssh.Dialer{Config: sshCfg}
	defer dialer.Close()

	events := make(chan event.Event, eventBuffer)
	p := &plan.ExecutionPlan{
		Name:     appTitle,
		Hosts:    hosts,
		Command:  args,
		Stage:    stage,
		Dialer:   dialer,
		Events:   events,
		Recorder: recorder.New(logDir, appTitle),
		Save:     savePolicy(),
		Logger:   logger,
	}

	printLog("Running %q on %d TPU VMs as %s\n", plan.CommandLine(args), len(hosts), sshCfg.User)
	exec, err := p.Start(ctx)
	if err != nil {
		return err
	}
	go func() {
		<-exec.Done()
		close(events)
	}()

	var result *plan.Result
	if dashboard {
		d := cliui.NewDashboard(cliui.DashboardConfig{
			Title:    fmt.Sprintf("%s %s", appTitle, version.Version),
			Category: category,
			Hosts:    hosts,
			Events:   events,
			SaveLogs: exec.SaveLogs,
			Cancel:   cancel,
		})
		if err := cliui.RunDashboard(d, tuiHandler); err != nil {
			log.Printf("Error running dashboard: %v", err)
		}
		if !d.Finished() {
			cancel()
		}
		result = exec.Wait()
		cliui.NewPrinter(cmd.OutOrStdout(), hosts, true).Print(finishedEvent(result))
	} else {
		printer := cliui.NewPrinter(cmd.OutOrStdout(), hosts, isTerminal(os.Stdout))
		result = printPlain(printer, events, exec.Wait)
	}

	if !result.Summary.Success {
		return fmt.Errorf("%w on %d/%d VMs", errExecutionFailed, result.Summary.Failed, result.Summary.Total)
	}
	return nil
}

// selectHosts loads the TPU list and applies --type and --nodes.
func selectHosts() (inventory.Category, []inventory.Host, error) {
	category, err := inventory.ParseCategory(tpuType)
	if err != nil {
		return "", nil, err
	}

	all, err := inventory.LoadFile(tpuListFile)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load TPU list: %w", err)
	}

	hosts, err := inventory.Filter(all, category, nodeNumbers)
	if err != nil {
		return "", nil, err
	}
	if len(hosts) == 0 {
		return "", nil, fmt.Errorf("no TPU VMs of type %s in %s", category, tpuListFile)
	}
	printLog("Selected %d of %d TPU VMs: %v\n", len(hosts), len(all), hosts)
	return category, hosts, nil
}

func sshConfig(logger *slog.Logger) (ssh.Config, error) {
	policy, err := ssh.ParseHostKeyPolicy(knownHosts)
	if err != nil {
		return ssh.Config{}, err
	}

	user := sshUser
	if user == "" {
		if user, err = currentUsername(); err != nil {
			return ssh.Config{}, err
		}
	}

	var password string
	if passwordEnv != "" {
		password = os.Getenv(passwordEnv)
		if password == "" {
			return ssh.Config{}, fmt.Errorf("environment variable %s is empty", passwordEnv)
		}
	}

	if connectTimeout <= 0 {
		return ssh.Config{}, fmt.Errorf("invalid timeout %d, must be positive", connectTimeout)
	}

	return ssh.Config{
		User:           user,
		Port:           sshPort,
		Timeout:        time.Duration(connectTimeout) * time.Second,
		Password:       password,
		PrivateKeyPath: identityFile,
		UseAgent:       true,
		HostKeyPolicy:  policy,
		Logger:         logger,
	}, nil
}

func savePolicy() plan.SavePolicy {
	switch {
	case saveLogs:
		return plan.SaveAlways
	case noAutoSave:
		return plan.SaveNever
	default:
		return plan.SaveOnFailure
	}
}

// newLogger routes diagnostics into the dashboard while it owns the
// terminal, and to stderr otherwise.
func newLogger(dashboard bool) (*slog.Logger, *cliui.TUILogHandler) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	if dashboard {
		h := cliui.NewTUILogHandler(level)
		return slog.New(h), h
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// printPlain prints events until the channel closes. A cancelled run may
// drop the final event, in which case the verdict is printed from the result.
func printPlain(printer *cliui.Printer, events <-chan event.Event, wait func() *plan.Result) *plan.Result {
	_, finished := printer.Run(events)
	result := wait()
	if !finished {
		printer.Print(finishedEvent(result))
	}
	return result
}

func finishedEvent(r *plan.Result) event.ExecutionFinished {
	return event.ExecutionFinished{
		Success: r.Summary.Success,
		Failed:  r.Summary.Failed,
		Total:   r.Summary.Total,
		LogPath: r.LogPath,
		LogErr:  r.LogErr,
	}
}

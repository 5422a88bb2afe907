// cmd/appdeploy/main.go

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/appdeploy/pkg/config"
	"github.com/windowsadmins/appdeploy/pkg/deploy"
	"github.com/windowsadmins/appdeploy/pkg/executor"
	"github.com/windowsadmins/appdeploy/pkg/installer"
	"github.com/windowsadmins/appdeploy/pkg/logging"
	"github.com/windowsadmins/appdeploy/pkg/manifest"
	"github.com/windowsadmins/appdeploy/pkg/report"
	"github.com/windowsadmins/appdeploy/pkg/status"
	"github.com/windowsadmins/appdeploy/pkg/version"
)

const defaultManifestName = "Deploy.yaml"

func main() {
	os.Exit(run())
}

func run() int {
	deploymentType := pflag.StringP("deployment-type", "t", "install", "Deployment type: install, uninstall or repair.")
	deployMode := pflag.StringP("deploy-mode", "m", "", "Deploy mode: interactive, silent or noninteractive. Defaults to the configured mode.")
	allowReboot := pflag.Bool("allow-reboot-pass-through", false, "Return 3010 when an action reports that a reboot is required.")
	disableLogging := pflag.Bool("disable-logging", false, "Do not write log files; console output remains.")
	manifestPath := pflag.String("manifest", "", "Path to the deployment manifest. Defaults to Deploy.yaml next to the executable.")
	filesDir := pflag.String("files", "", "Payload directory. Defaults to Files next to the manifest.")
	configPath := pflag.String("config", config.ConfigPath, "Path to the engine configuration file.")
	showConfig := pflag.Bool("show-config", false, "Display the effective configuration and exit.")
	versionFlag := pflag.Bool("version", false, "Print the version and exit.")

	// Count the number of -v flags.
	var verbosity int
	pflag.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (e.g. -v, -vv)")
	if err := pflag.CommandLine.Parse(normalizeArgs(rawArgs()[1:])); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return report.ExitInitFailed
	}

	if *versionFlag {
		if verbosity > 0 {
			version.PrintFull()
		} else {
			version.Print()
		}
		return report.ExitSuccess
	}

	cfg, err := config.LoadConfigFrom(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return report.ExitInitFailed
	}
	cfg.LogLevel = raiseLevel(cfg.LogLevel, verbosity)
	if *disableLogging {
		cfg.DisableLogging = true
	}
	if pflag.CommandLine.Changed("allow-reboot-pass-through") {
		cfg.AllowRebootPassThrough = *allowReboot
	}

	if *showConfig {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode configuration: %v\n", err)
			return report.ExitInitFailed
		}
		fmt.Printf("# source: %s\n%s", cfg.Source, data)
		return report.ExitSuccess
	}

	dt, err := executor.ParseDeploymentType(*deploymentType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return report.ExitInitFailed
	}
	modeName := *deployMode
	if modeName == "" {
		modeName = cfg.DefaultDeployMode
	}
	mode, err := executor.ParseDeployMode(modeName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return report.ExitInitFailed
	}

	logCfg := logging.DefaultConfig(cfg.LogPath)
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	logCfg.EnableFiles = !cfg.DisableLogging
	logCfg.EnableYAML = !cfg.DisableLogging
	logCfg.Retention = logging.RetentionPolicy{KeepRuns: cfg.KeepRuns, MaxAgeDays: cfg.RetentionDays}
	if err := logging.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		return report.ExitInitFailed
	}
	defer logging.CloseLogger()
	logging.Debug("Configuration loaded", "source", cfg.Source, "logPath", cfg.LogPath)

	elevated, err := installer.IsElevated()
	if err != nil {
		logging.Warn("Could not determine elevation", "error", err)
	}
	if !elevated {
		logging.Error("Administrative privileges are required", "exitCode", report.ExitAdminRequired)
		return report.ExitAdminRequired
	}

	path := *manifestPath
	if path == "" {
		path = defaultManifest()
	}
	m, err := manifest.Load(afero.NewOsFs(), path, *filesDir, manifest.HostEnvironment())
	if err != nil {
		logging.Error("Failed to load manifest", "path", path, "error", err)
		if mode == executor.Interactive {
			status.ShowFatalError("Deployment failed", err.Error())
		}
		return report.ExitInitFailed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec := executor.NewHost(executor.Options{
		ProcessStopTimeout: time.Duration(cfg.ProcessStopTimeoutSeconds) * time.Second,
		ProcessTimeout:     time.Duration(cfg.InstallerTimeoutMinutes) * time.Minute,
		Elevated:           elevated,
	})

	// Empty when logging is disabled, which also turns off the msiexec log.
	logDir := logging.GetCurrentLogDir()

	runner := &deploy.Runner{
		Manifest: m,
		Executor: exec,
		Reporter: status.New(mode == executor.Interactive),
	}
	res := runner.Run(ctx, deploy.Request{
		DeploymentType:         dt,
		DeployMode:             mode,
		AllowRebootPassThrough: cfg.AllowRebootPassThrough,
		LogDir:                 logDir,
	})

	res.SessionID = logging.GetSessionID()
	if logDir != "" {
		if p, err := report.Write(afero.NewOsFs(), logDir, res); err != nil {
			logging.Warn("Failed to write run result", "error", err)
		} else {
			logging.Debug("Run result written", "path", p)
		}
	}

	if res.Fatal && mode == executor.Interactive {
		status.ShowFatalError(fmt.Sprintf("%s %s failed", m.Name, dt), fmt.Sprintf("%v\n\nExit code %d", res.FirstError(), res.ExitCode))
	}
	return res.ExitCode
}

// raiseLevel applies -v counts on top of the configured level. It never
// lowers a level that is already more verbose.
func raiseLevel(configured string, verbosity int) string {
	want := logging.ParseLevel(configured)
	switch {
	case verbosity == 1 && want < logging.LevelInfo:
		want = logging.LevelInfo
	case verbosity >= 2:
		want = logging.LevelDebug
	}
	return want.String()
}

// defaultManifest looks for Deploy.yaml beside the executable.
func defaultManifest() string {
	exe, err := os.Executable()
	if err != nil {
		return defaultManifestName
	}
	return filepath.Join(filepath.Dir(exe), defaultManifestName)
}

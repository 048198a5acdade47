package main

import (
	"flag"
	"fmt"
	"os"

	"pifleet.dev/pifleet/cmd"
	"pifleet.dev/pifleet/internal/brand"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	defaultConfig := brand.DefaultConfigDir + "/" + brand.ConfigFileName

	// A missing default config file is fine: the loader falls back to
	// environment-only mode when no path is given.
	resolveConfig := func(path string) string {
		if path == defaultConfig {
			if _, err := os.Stat(path); err != nil {
				return ""
			}
		}
		return path
	}

	switch os.Args[1] {
	case "serve":
		serveFlags := flag.NewFlagSet("serve", flag.ExitOnError)
		configFile := serveFlags.String("config", defaultConfig, "Configuration file")
		serveFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		jsonLogs := serveFlags.Bool("json-logs", false, "Emit JSON logs")
		serveFlags.Parse(os.Args[2:])

		if err := cmd.RunServe(resolveConfig(*configFile), *jsonLogs); err != nil {
			fmt.Fprintf(os.Stderr, "Serve failed: %v\n", err)
			os.Exit(1)
		}

	case "status":
		statusFlags := flag.NewFlagSet("status", flag.ExitOnError)
		configFile := statusFlags.String("config", defaultConfig, "Configuration file")
		statusFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		statusFlags.Parse(os.Args[2:])

		if err := cmd.RunStatus(resolveConfig(*configFile)); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}

	case "enable":
		enableFlags := flag.NewFlagSet("enable", flag.ExitOnError)
		configFile := enableFlags.String("config", defaultConfig, "Configuration file")
		enableFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		enableFlags.Parse(os.Args[2:])

		if err := cmd.RunSetBlocking(resolveConfig(*configFile), true, 0); err != nil {
			fmt.Fprintf(os.Stderr, "Enable failed: %v\n", err)
			os.Exit(1)
		}

	case "disable":
		disableFlags := flag.NewFlagSet("disable", flag.ExitOnError)
		configFile := disableFlags.String("config", defaultConfig, "Configuration file")
		disableFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		timer := disableFlags.Int("timer", 0, "Seconds until blocking re-enables itself (0 = indefinitely)")
		disableFlags.IntVar(timer, "t", 0, "Timer (short)")
		disableFlags.Parse(os.Args[2:])

		if err := cmd.RunSetBlocking(resolveConfig(*configFile), false, *timer); err != nil {
			fmt.Fprintf(os.Stderr, "Disable failed: %v\n", err)
			os.Exit(1)
		}

	case "probe":
		probeFlags := flag.NewFlagSet("probe", flag.ExitOnError)
		configFile := probeFlags.String("config", defaultConfig, "Configuration file")
		probeFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		probeFlags.Parse(os.Args[2:])

		domain := ""
		if len(probeFlags.Args()) > 0 {
			domain = probeFlags.Arg(0)
		}

		if err := cmd.RunProbe(resolveConfig(*configFile), domain); err != nil {
			fmt.Fprintf(os.Stderr, "Probe failed: %v\n", err)
			os.Exit(1)
		}

	case "console":
		consoleFlags := flag.NewFlagSet("console", flag.ExitOnError)
		configFile := consoleFlags.String("config", defaultConfig, "Configuration file")
		consoleFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		consoleFlags.Parse(os.Args[2:])

		if err := cmd.RunConsole(resolveConfig(*configFile)); err != nil {
			fmt.Fprintf(os.Stderr, "Console failed: %v\n", err)
			os.Exit(1)
		}

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		verbose := checkFlags.Bool("verbose", false, "Verbose output")
		checkFlags.BoolVar(verbose, "v", false, "Verbose output (short)")
		checkFlags.Parse(os.Args[2:])

		configFile := defaultConfig
		if len(checkFlags.Args()) > 0 {
			configFile = checkFlags.Arg(0)
		}

		if err := cmd.RunCheck(resolveConfig(configFile), *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
			os.Exit(1)
		}

	case "version":
		fmt.Printf("%s version %s\n", brand.Name, brand.Version)
		fmt.Printf("Build: %s\n", brand.BuildTime)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage:
  %s <command> [options]

Commands:
  serve     Start the HTTP control service
            Options: --config (-c) <file>, --json-logs
  status    Show blocking state and stats for every instance
  enable    Enable blocking on every instance
  disable   Disable blocking on every instance
            Options: --timer (-t) <seconds>
  probe     Verify blocking via a canary DNS query
            Usage: %s probe [domain]
  console   Interactive fleet console
  check     Validate a configuration file
            Options: --verbose (-v)
  version   Print version info

Configuration is read from %s, or from
%s_URLS / %s_PASSWORDS when no file exists.

Examples:
  %s serve -c ./pifleet.hcl
  %s disable -t 1800            # pause blocking for 30 minutes
  %s probe ads.example.com
`,
		brand.Name, brand.Description,
		brand.LowerName, brand.LowerName,
		brand.DefaultConfigDir+"/"+brand.ConfigFileName,
		brand.EnvPrefix, brand.EnvPrefix,
		brand.LowerName, brand.LowerName, brand.LowerName)
}

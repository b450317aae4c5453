package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattjoyce/feedbackd/internal/api"
	"github.com/mattjoyce/feedbackd/internal/config"
	"github.com/mattjoyce/feedbackd/internal/hooks"
	"github.com/mattjoyce/feedbackd/internal/log"
	"github.com/mattjoyce/feedbackd/internal/tui/watch"
)

const envAPIKey = "FEEDBACKD_API_KEY"

func runConfigNoun(args []string) int {
	if len(args) == 0 || isHelpToken(args[0]) {
		printConfigNounHelp()
		return 0
	}
	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "lock":
		return runConfigLock(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n\n", args[0])
		printConfigNounHelp()
		return 1
	}
}

func printConfigNounHelp() {
	fmt.Println("Usage: feedbackd config <check|lock> [--config PATH]")
	fmt.Println("  check   Validate config, resolve the hooks module and verify checksums")
	fmt.Println("  lock    Write .checksums for the config and hooks files (--dry-run to preview)")
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("config check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output the resolved config as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config invalid: %v\n", err)
		return 1
	}

	loader := hooks.NewLoader(log.Discard())
	hooks.RegisterBuiltins(loader, log.Discard(), nil)
	set, hookErr := loader.Load(cfg.Hooks.Module)

	if *jsonOut {
		redacted := *cfg
		if redacted.API.APIKey != "" {
			redacted.API.APIKey = "********"
		}
		data, err := json.MarshalIndent(redacted, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render config: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
	} else {
		source := cfg.SourcePath
		if source == "" {
			source = "(defaults)"
		}
		fmt.Printf("config:    %s\n", source)
		fmt.Printf("listen:    %s (reply port %d, buffer %d)\n", cfg.Network.Listen, cfg.Network.ReplyPort, cfg.Network.BufferSize)
		fmt.Printf("feedbacks: %s (default %q)\n", strings.Join(cfg.Feedbacks.Dirs, ", "), cfg.Feedbacks.Default)
		installed := make([]string, 0)
		for _, n := range set.Installed() {
			installed = append(installed, string(n))
		}
		fmt.Printf("hooks:     %q installed=[%s]\n", cfg.Hooks.Module, strings.Join(installed, ","))
		if cfg.Journal.Enabled {
			fmt.Printf("journal:   %s (retention %s)\n", cfg.Journal.Path, cfg.Journal.Retention)
		} else {
			fmt.Println("journal:   disabled")
		}
		if cfg.API.Enabled {
			fmt.Printf("api:       %s\n", cfg.API.Listen)
		} else {
			fmt.Println("api:       disabled")
		}
	}

	if hookErr != nil {
		fmt.Fprintf(os.Stderr, "Hooks invalid: %v\n", hookErr)
		return 1
	}
	fmt.Fprintln(os.Stderr, "Config OK")
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("config lock", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	dryRun := fs.Bool("dry-run", false, "Show what would be written")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	path := *configPath
	if path == "" {
		discovered, err := config.Discover()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		path = discovered
	}
	cfg, err := config.Load(path)
	if err != nil {
		// A stale lock must not prevent relocking.
		if !errors.Is(err, config.ErrChecksumMismatch) {
			fmt.Fprintf(os.Stderr, "Config invalid: %v\n", err)
			return 1
		}
		if cfg, err = config.LoadUnverified(path); err != nil {
			fmt.Fprintf(os.Stderr, "Config invalid: %v\n", err)
			return 1
		}
	}

	report, err := config.Lock(cfg, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lock failed: %v\n", err)
		return 1
	}
	for _, f := range report.Files {
		fmt.Printf("%s  %s\n", f.Hash, f.Key)
	}
	if report.Written {
		fmt.Printf("wrote %s\n", report.ChecksumPath)
	} else {
		fmt.Printf("dry run: %s not written\n", report.ChecksumPath)
	}
	return 0
}

func runFeedbackNoun(args []string) int {
	if len(args) == 0 || isHelpToken(args[0]) {
		fmt.Println("Usage: feedbackd feedback list [--config PATH]")
		return 0
	}
	if args[0] != "list" {
		fmt.Fprintf(os.Stderr, "Unknown feedback action: %s\n", args[0])
		return 1
	}

	fs := flag.NewFlagSet("feedback list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	reg, err := buildRegistry(cfg, log.Discard())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSOURCE\tVERSION\tDESCRIPTION")
	for _, e := range reg.All() {
		v := e.Version
		if v == "" {
			v = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Source, v, e.Description)
	}
	_ = tw.Flush()
	return 0
}

// apiTarget resolves the admin API URL and key from flags, env and config.
func apiTarget(fs *flag.FlagSet, args []string) (string, string, error) {
	configPath := fs.String("config", "", "Path to configuration file or directory")
	apiURL := fs.String("api", "", "Admin API base URL (default from config)")
	apiKey := fs.String("api-key", "", "Admin API key (default $"+envAPIKey+" or config)")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}

	url, key := *apiURL, *apiKey
	if key == "" {
		key = os.Getenv(envAPIKey)
	}
	if url == "" || key == "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return "", "", err
		}
		if url == "" {
			url = "http://" + cfg.API.Listen
		}
		if key == "" {
			key = cfg.API.APIKey
		}
	}
	if key == "" {
		return "", "", errors.New("no API key: pass --api-key or set " + envAPIKey)
	}
	return strings.TrimRight(url, "/"), key, nil
}

func runStatus(args []string) int {
	url, key, err := apiTarget(flag.NewFlagSet("status", flag.ContinueOnError), args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	req, err := http.NewRequest(http.MethodGet, url+"/status", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	req.Header.Set("Authorization", "Bearer "+key)
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Controller unreachable: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Status request failed: %s\n", resp.Status)
		return 1
	}

	var st api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid status response: %v\n", err)
		return 1
	}
	out, _ := json.MarshalIndent(st, "", "  ")
	fmt.Println(string(out))
	return 0
}

func runWatch(args []string) int {
	url, key, err := apiTarget(flag.NewFlagSet("watch", flag.ContinueOnError), args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	p := tea.NewProgram(watch.New(url, key), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Watch failed: %v\n", err)
		return 1
	}
	return 0
}

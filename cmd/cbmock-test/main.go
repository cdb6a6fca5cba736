// Command cbmock-test runs YAML scenarios against a running cbmock
// emulator.
//
// Usage:
//
//	cbmock-test [flags] [scenario-pattern]
//
// Flags:
//
//	-target string          Control URL of the emulator (default "http://127.0.0.1:18091/mock")
//	-tests string           Path to the scenario directory (default "./testdata/scenarios")
//	-tags string            Comma-separated tags a scenario must carry
//	-timeout duration       Scenario timeout (default 30s)
//	-fail-fast              Stop after the first failed scenario
//	-verbose                Enable verbose output
//	-json                   Output results as JSON
//	-junit                  Output results as JUnit XML
//	-admin-user string      Basic auth user for the control endpoint
//	-admin-password string  Basic auth password for the control endpoint
//	-var key=value          Scenario variable, may be repeated
//
// Examples:
//
//	# Run everything against a local emulator
//	cbmock-test -var bucket_password=secret
//
//	# Run the SASL scenarios with JUnit output
//	cbmock-test -junit -var bucket_password=secret TC-SASL
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cbmock/cbmock-go/internal/testharness/runner"
)

var (
	target        = flag.String("target", "http://127.0.0.1:18091/mock", "Control URL of the emulator")
	tests         = flag.String("tests", "./testdata/scenarios", "Path to the scenario directory")
	tags          = flag.String("tags", "", "Comma-separated tags a scenario must carry")
	timeout       = flag.Duration("timeout", 30*time.Second, "Scenario timeout")
	failFast      = flag.Bool("fail-fast", false, "Stop after the first failed scenario")
	verbose       = flag.Bool("verbose", false, "Enable verbose output")
	jsonOut       = flag.Bool("json", false, "Output results as JSON")
	junitOut      = flag.Bool("junit", false, "Output results as JUnit XML")
	adminUser     = flag.String("admin-user", "", "Basic auth user for the control endpoint")
	adminPassword = flag.String("admin-password", "", "Basic auth password for the control endpoint")
)

func main() {
	vars := make(map[string]any)
	flag.Func("var", "Scenario variable as key=value, may be repeated", func(s string) error {
		k, v, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return fmt.Errorf("expected key=value, got %q", s)
		}
		vars[k] = v
		return nil
	})
	flag.Parse()

	pattern := ""
	if flag.NArg() > 0 {
		pattern = flag.Arg(0)
	}

	outputFormat := "text"
	if *jsonOut {
		outputFormat = "json"
	} else if *junitOut {
		outputFormat = "junit"
	}

	level := slog.LevelWarn
	if outputFormat == "text" {
		log.SetFlags(log.Ltime)
		printBanner()
		log.Printf("Target: %s", *target)
		if pattern != "" {
			log.Printf("Pattern: %s", pattern)
		}
		log.Println()
		if *verbose {
			level = slog.LevelDebug
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	config := &runner.Config{
		Target:             *target,
		TestDir:            *tests,
		Pattern:            pattern,
		Tags:               splitTags(*tags),
		Timeout:            *timeout,
		StopOnFirstFailure: *failFast,
		Verbose:            *verbose,
		Output:             os.Stdout,
		OutputFormat:       outputFormat,
		AdminUser:          *adminUser,
		AdminPassword:      *adminPassword,
		Variables:          vars,
		Logger:             logger,
	}

	r, err := runner.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := r.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}

	if result.FailCount > 0 {
		cancel()
		os.Exit(1)
	}
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func printBanner() {
	fmt.Print(`
      _                      _
  ___| |__  _ __ ___   ___  | | __
 / __| '_ \| '_ ` + "`" + ` _ \ / _ \ | |/ /
| (__| |_) | | | | | | (_) ||   <
 \___|_.__/|_| |_| |_|\___/ |_|\_\

Scenario Runner
`)
}

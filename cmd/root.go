package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/burrowscan/burrow/internal/config"
	"github.com/burrowscan/burrow/internal/runner"
	"github.com/burrowscan/burrow/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	opts config.Options
	cfg  *config.RunConfig
)

type flagGroup struct {
	title string
	flags []string
}

var helpGroups = []flagGroup{
	{"TARGET", []string{"url", "wordlist", "extensions"}},
	{"PERFORMANCE", []string{"threads", "timeout", "scan-limit", "rate-limit", "time-limit", "auto-tune", "auto-bail", "error-window"}},
	{"RECURSION", []string{"max-depth", "no-recursion", "force-recursion", "dont-scan"}},
	{"DISCOVERY", []string{"extract-links", "scan-robots"}},
	{"FILTERS", []string{"allow-status", "deny-status", "filter-size", "filter-words", "filter-lines", "filter-regex", "filter-similar-to", "similar-cutoff", "dont-filter"}},
	{"HTTP", []string{"header", "user-agent", "proxy", "redirects"}},
	{"STATE", []string{"resume-from", "state-file", "no-state"}},
	{"OUTPUT", []string{"output", "format", "quiet", "no-color"}},
}

var rootCmd = &cobra.Command{
	Use:     "burrow -u <url> -w <wordlist> [flags]",
	Short:   "Recursive web content discovery scanner",
	Version: version.Version,
	Long: `burrow is a recursive forced-browsing tool for penetration testing and
bug bounty hunting. Discovered directories spawn their own scans under a
global concurrency governor, wildcard responses are auto-filtered, and
interrupted runs can be resumed from a saved state file.`,
	Example: `  burrow -u https://example.com -w wordlist.txt
  burrow -u https://example.com -w wordlist.txt -e php,html -t 100
  burrow -u https://example.com -w wordlist.txt -L 4 --rate-limit 50
  burrow -u https://example.com -w wordlist.txt --auto-tune --extract-links
  burrow -u https://example.com -w wordlist.txt -s 200,301 -S 4092
  burrow -u https://example.com -w wordlist.txt --dont-scan /logout
  burrow --resume-from burrow-https_example_com-1693244400.state
  burrow -u https://example.com -w wordlist.txt -o results.json --format json`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		headers, _ := cmd.Flags().GetStringSlice("header")
		if len(headers) > 0 {
			opts.Headers = make(map[string]string, len(headers))
			for _, h := range headers {
				parts := strings.SplitN(h, ":", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid header format %q, expected 'Key: Value'", h)
				}
				opts.Headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
			}
		}

		if opts.URL == "" && opts.ResumeFrom == "" {
			_ = cmd.Help()
			fmt.Fprintln(os.Stderr)
			return fmt.Errorf("target required: use -u or --resume-from")
		}
		if opts.WordlistPath == "" {
			return fmt.Errorf("wordlist required: use -w")
		}

		var err error
		cfg, err = config.Validate(&opts)
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		return runner.Run(ctx, cfg)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()

	// Target
	f.StringVarP(&opts.URL, "url", "u", "", "Target URL")
	f.StringVarP(&opts.WordlistPath, "wordlist", "w", "", "Wordlist path")
	f.StringSliceVarP(&opts.Extensions, "extensions", "e", nil, "File extensions to test (e.g. php,html,js)")

	// Performance
	f.IntVarP(&opts.Threads, "threads", "t", 50, "Concurrent requests per scan")
	f.DurationVar(&opts.Timeout, "timeout", 7*time.Second, "HTTP request timeout")
	f.IntVarP(&opts.ScanLimit, "scan-limit", "L", 0, "Max concurrent scans (0 = unlimited)")
	f.IntVar(&opts.RateLimit, "rate-limit", 0, "Max requests per second per scan (0 = unlimited)")
	f.DurationVar(&opts.TimeLimit, "time-limit", 0, "Abort the whole run after this duration (0 = unlimited)")
	f.BoolVar(&opts.AutoTune, "auto-tune", false, "Back off threads and rate when errors or 429s pile up")
	f.BoolVar(&opts.AutoBail, "auto-bail", false, "Cancel scans whose error rate stays excessive")
	f.IntVar(&opts.ErrorWindow, "error-window", 50, "Rolling window of request outcomes per scan")

	// Recursion
	f.IntVarP(&opts.MaxDepth, "max-depth", "d", 4, "Maximum recursion depth (0 = unlimited)")
	f.BoolVarP(&opts.NoRecursion, "no-recursion", "n", false, "Do not scan discovered directories")
	f.BoolVar(&opts.ForceRecursion, "force-recursion", false, "Recurse into every directory-like response regardless of status")
	f.StringSliceVar(&opts.DontScan, "dont-scan", nil, "URLs or regex patterns never scanned or recursed into")

	// Discovery
	f.BoolVarP(&opts.ExtractLinks, "extract-links", "E", false, "Parse HTML responses for additional targets")
	f.BoolVar(&opts.ScanRobots, "scan-robots", false, "Seed targets from /robots.txt")

	// Filtering
	f.VarP(&intSliceValue{target: &opts.AllowStatus}, "allow-status", "s", "Only report these status codes (comma-separated)")
	f.VarP(&intSliceValue{target: &opts.DenyStatus}, "deny-status", "C", "Never report these status codes (comma-separated)")
	f.VarP(&intSliceValue{target: &opts.FilterSize}, "filter-size", "S", "Hide responses of these exact sizes")
	f.VarP(&intSliceValue{target: &opts.FilterWords}, "filter-words", "W", "Hide responses with these word counts")
	f.VarP(&intSliceValue{target: &opts.FilterLines}, "filter-lines", "N", "Hide responses with these line counts")
	f.StringSliceVarP(&opts.FilterRegex, "filter-regex", "X", nil, "Hide responses whose body or headers match this regex")
	f.StringSliceVar(&opts.SimilarTo, "filter-similar-to", nil, "Hide responses similar to the page at this URL")
	f.IntVar(&opts.SimilarCutoff, "similar-cutoff", 0, "Max fingerprint distance treated as similar")
	f.BoolVarP(&opts.DontFilter, "dont-filter", "D", false, "Disable wildcard response auto-filtering")

	// HTTP
	f.StringSliceVarP(new([]string), "header", "H", nil, "Custom headers (Key: Value)")
	f.StringVarP(&opts.UserAgent, "user-agent", "a", "", "Custom User-Agent string")
	f.StringVarP(&opts.Proxy, "proxy", "p", "", "HTTP/SOCKS proxy URL")
	f.BoolVarP(&opts.FollowRedirects, "redirects", "r", false, "Follow HTTP redirects")

	// State
	f.StringVar(&opts.ResumeFrom, "resume-from", "", "State file of an interrupted run to resume")
	f.StringVar(&opts.StateFile, "state-file", "", "Where to save scan state (default: derived from target)")
	f.BoolVar(&opts.NoState, "no-state", false, "Disable state saving entirely")

	// Output
	f.StringVarP(&opts.OutputFile, "output", "o", "", "Output file path")
	f.StringVar(&opts.OutputFormat, "format", "text", "Output format: text, json")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "Minimal output")
	f.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")

	// Custom help: categorized flags like httpx.
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		w := os.Stderr
		fmt.Fprint(w, helpBanner(cmd.Version))
		fmt.Fprintf(w, "%s\n\nUsage:\n  %s\n", cmd.Long, cmd.UseLine())
		fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
		fmt.Fprintf(w, "\nFlags:\n")
		for _, g := range helpGroups {
			fmt.Fprintf(w, "\n%s:\n", g.title)
			for _, name := range g.flags {
				if f := cmd.Flags().Lookup(name); f != nil {
					fmt.Fprintln(w, formatFlag(f))
				}
			}
		}
		fmt.Fprintln(w)
	})
}

// Execute runs the root command and exits with the appropriate code:
// 130 when interrupted, 2 when the time limit fired, 1 on any other error.
func Execute() {
	err := rootCmd.Execute()
	switch {
	case err == nil:
	case errors.Is(err, runner.ErrInterrupted):
		os.Exit(130)
	case errors.Is(err, runner.ErrTimeLimit):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// intSliceValue implements pflag.Value for comma-separated int slices.
type intSliceValue struct {
	target *[]int
}

func (v *intSliceValue) String() string {
	if v.target == nil || len(*v.target) == 0 {
		return ""
	}
	parts := make([]string, len(*v.target))
	for i, val := range *v.target {
		parts[i] = strconv.Itoa(val)
	}
	return strings.Join(parts, ",")
}

func (v *intSliceValue) Set(s string) error {
	parts := strings.Split(s, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid status code %q: %w", p, err)
		}
		*v.target = append(*v.target, n)
	}
	return nil
}

func (v *intSliceValue) Type() string { return "ints" }

func formatFlag(f *pflag.Flag) string {
	var left string
	if f.Shorthand != "" {
		left = fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	} else {
		left = fmt.Sprintf("    --%s", f.Name)
	}

	typ := f.Value.Type()
	if typ != "bool" {
		left += " " + typ
	}

	// Pad to fixed column width for aligned descriptions.
	const col = 36
	for len(left) < col {
		left += " "
	}

	right := f.Usage
	// Show default for non-zero values.
	def := f.DefValue
	if def != "" && def != "false" && def != "0" && def != "0s" && def != "[]" {
		right += fmt.Sprintf(" (default %s)", def)
	}

	return "   " + left + right
}

func helpBanner(ver string) string {
	if ver != "dev" && ver != "" && !strings.HasPrefix(ver, "v") {
		ver = "v" + ver
	}
	return fmt.Sprintf(`
     __
    / /_  __  ___________ ____ _      __
   / __ \/ / / / ___/ ___/ __ \ | /| / /
  / /_/ / /_/ / /  / /  / /_/ / |/ |/ /
 /_.___/\__,_/_/  /_/   \____/|__/|__/   %s

`, ver)
}

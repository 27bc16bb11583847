package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/neonvoidvibes/align/internal/config"
	"github.com/neonvoidvibes/align/internal/engine"
	"github.com/neonvoidvibes/align/internal/llm"
	"github.com/neonvoidvibes/align/internal/scoring"
	"github.com/neonvoidvibes/align/internal/store"
)

func init() {
	logCmd.Flags().StringVar(&logAt, "at", "", "message time, RFC 3339 or YYYY-MM-DD (default now)")
	logCmd.Flags().BoolVar(&logLocal, "local", false, "analyze in this process even if a server is running")

	analyzeCmd.Flags().BoolVar(&analyzePending, "pending", false, "analyze every unprocessed user message, oldest first")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", scoring.WindowDays, "number of days to show")
}

// newEngine builds an engine for one-shot CLI runs. A missing LLM degrades to
// decay-only analysis.
func newEngine(cfg config.Config, reg *scoring.Registry, db *store.DB) *engine.Engine {
	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: LLM not configured (%v), values will only decay\n", err)
	}
	return engine.New(db, reg, client)
}

// --- log command ---

var (
	logAt    string
	logLocal bool
)

var logCmd = &cobra.Command{
	Use:   "log [text]",
	Short: "Record a check-in and score it",
	Long: "Record a free-text check-in. When a server is running the message is " +
		"handed to its analysis queue; otherwise it is analyzed here and the new score printed.",
	Args: cobra.MinimumNArgs(1),
	RunE: runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(cfg.Scoring.TimeZone)
	if err != nil {
		return fmt.Errorf("time zone %q: %w", cfg.Scoring.TimeZone, err)
	}
	at, err := parseAt(logAt, time.Now(), loc)
	if err != nil {
		return err
	}

	if !logLocal {
		c := newAPIClient(cfg)
		if c.healthy() {
			var resp struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			}
			err := c.postJSON("/api/messages", map[string]any{
				"role":       store.RoleUser,
				"content":    text,
				"created_at": at,
			}, &resp)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", resp.Status, resp.ID)
			return nil
		}
	}

	_, reg, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	msg, err := db.AddMessage(store.RoleUser, text, at)
	if err != nil {
		return err
	}

	eng := newEngine(cfg, reg, db)
	res, err := eng.Analyze(context.Background(), msg.ID)
	if err != nil {
		return err
	}
	printResult(os.Stdout, reg, res)
	return nil
}

// parseAt accepts RFC 3339 or a bare date, taken as noon in loc. Empty means now.
func parseAt(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return d.Add(12 * time.Hour), nil
}

// --- analyze command ---

var analyzePending bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [message-id]",
	Short: "Analyze a stored message, or all pending ones",
	Args: func(cmd *cobra.Command, args []string) error {
		if analyzePending {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, reg, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	eng := newEngine(cfg, reg, db)
	ctx := context.Background()

	if !analyzePending {
		res, err := eng.Analyze(ctx, args[0])
		if err != nil {
			return err
		}
		printResult(os.Stdout, reg, res)
		return nil
	}

	msgs, err := db.UnprocessedMessages(1000)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Println("No pending messages.")
		return nil
	}

	var failed int
	for _, m := range msgs {
		res, err := eng.Analyze(ctx, m.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", m.ID, err)
			failed++
			continue
		}
		printResult(os.Stdout, reg, res)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d messages failed", failed, len(msgs))
	}
	return nil
}

// --- score command ---

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Show the latest score",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, reg, db, err := setup()
		if err != nil {
			return err
		}
		defer db.Close()

		snap, err := db.LatestSnapshot()
		if errors.Is(err, store.ErrNoSnapshot) {
			fmt.Println("No scores yet. Record a check-in with `align log`.")
			return nil
		}
		if err != nil {
			return err
		}
		printSnapshot(os.Stdout, reg, snap)
		return nil
	},
}

// --- history command ---

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent daily scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, db, err := setup()
		if err != nil {
			return err
		}
		defer db.Close()

		snaps, err := db.RecentSnapshots(historyLimit)
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No scores yet.")
			return nil
		}
		for _, s := range snaps {
			fmt.Printf("%s  %3d  focus on %s\n", s.Day, s.DisplayScore, s.Priority)
		}
		return nil
	},
}

// --- categories command ---

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List tracked categories and weights",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := scoring.NewRegistry(cfg.Scoring)
		if err != nil {
			return fmt.Errorf("invalid scoring config: %w", err)
		}
		printCategories(os.Stdout, reg)
		return nil
	},
}

func printCategories(w io.Writer, reg *scoring.Registry) {
	for _, c := range reg.Categories() {
		line := fmt.Sprintf("%-12s target %-6g %-12s weight %.2f", c.ID, c.Target, c.Unit, c.Weight)
		if c.Derived() {
			line += "  = mean(" + strings.Join(c.DerivedFrom, ", ") + ")"
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\ncore levers: %s (default %s)\n", strings.Join(reg.CoreLevers(), ", "), reg.DefaultPriority())
	fmt.Fprintf(w, "decay: x%g per day, window %d days, zone %s\n", reg.DecayFactor(), scoring.WindowDays, reg.Location())
}

func printResult(w io.Writer, reg *scoring.Registry, res *engine.RunResult) {
	if res.Skipped {
		fmt.Fprintf(w, "%s: skipped (%s)\n", res.MessageID, res.Reason)
		return
	}
	if len(res.Inferred) > 0 {
		fmt.Fprintf(w, "%s: recorded %s\n", res.MessageID, formatValues(res.Inferred))
	} else {
		fmt.Fprintf(w, "%s: nothing new recorded\n", res.MessageID)
	}
	if res.Snapshot != nil {
		printSnapshot(w, reg, res.Snapshot)
	}
}

func printSnapshot(w io.Writer, reg *scoring.Registry, snap *scoring.Snapshot) {
	fmt.Fprintf(w, "%s  score %d  focus on %s\n", snap.Day, snap.DisplayScore, snap.Priority)
	for _, c := range reg.Categories() {
		s, ok := snap.Scores[c.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-12s %5.1f%%\n", c.ID, s*100)
	}
}

func formatValues(v scoring.Values) string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, v[k])
	}
	return strings.Join(parts, " ")
}

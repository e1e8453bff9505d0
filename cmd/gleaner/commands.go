package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gleanerhq/gleaner/internal/config"
	"github.com/gleanerhq/gleaner/internal/coordinator"
	"github.com/gleanerhq/gleaner/internal/storage"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run ingestion over configured sources or explicit files",
}

var ingestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect, process, and store content from every enabled source",
	Long: `Collect, process, and store content from every enabled source.

Examples:
  gleaner ingest run
  gleaner ingest run --since 24h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sinceStr, _ := cmd.Flags().GetString("since")

		req := map[string]any{}
		if sinceStr != "" {
			d, err := time.ParseDuration(sinceStr)
			if err != nil {
				return fmt.Errorf("invalid --since duration: %w", err)
			}
			req["since"] = time.Now().UTC().Add(-d).Format(time.RFC3339)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Running ingestion...")
		resp, err := client.post(cmd.Context(), "/ingest/run", req)
		if err != nil {
			return err
		}

		var stats coordinator.Stats
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printIngestionStats(stats)
		return nil
	},
}

var ingestFilesCmd = &cobra.Command{
	Use:   "files <path>...",
	Short: "Ingest specific files through the full pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ingest/files", map[string]any{"paths": args})
		if err != nil {
			return err
		}

		if len(args) == 1 {
			var report struct {
				JobID     string  `json:"job_id"`
				ContentID string  `json:"content_id"`
				Score     float64 `json:"score"`
				Level     string  `json:"level"`
				Approved  bool    `json:"approved"`
			}
			if err := decodeJSON(resp, &report); err != nil {
				return err
			}
			printSuccess("Stored %s (quality %.1f, %s, job %s)", report.ContentID, report.Score, report.Level, report.JobID)
			return nil
		}

		var stats coordinator.Stats
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}
		printIngestionStats(stats)
		return nil
	},
}

var ingestSyncCmd = &cobra.Command{
	Use:   "cloud-sync",
	Short: "Ingest from cloud drive sync folders only",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Syncing cloud drives...")
		resp, err := client.post(cmd.Context(), "/ingest/cloud-sync", nil)
		if err != nil {
			return err
		}

		var stats coordinator.Stats
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}
		printIngestionStats(stats)
		return nil
	},
}

func printIngestionStats(stats coordinator.Stats) {
	printSuccess("Ingestion finished in %s", stats.EndTime.Sub(stats.StartTime).Round(time.Millisecond))
	printStatus("Collected", "%d", stats.TotalCollected)
	printStatus("Processed", "%d", stats.TotalProcessed)
	printStatus("Stored", "%d", stats.TotalStored)
	printStatus("Rejected", "%d", stats.TotalRejected)
	for source, src := range stats.BySource {
		printStatus("  "+source, "%d items, %d errors", src.Items, src.Errors)
	}
	for _, e := range stats.Errors {
		printWarning("%s", e)
	}
}

func init() {
	ingestRunCmd.Flags().String("since", "", "only collect items modified within this duration (e.g. 24h, 30m)")
	ingestCmd.AddCommand(ingestRunCmd)
	ingestCmd.AddCommand(ingestFilesCmd)
	ingestCmd.AddCommand(ingestSyncCmd)
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		contentType, _ := cmd.Flags().GetString("type")
		source, _ := cmd.Flags().GetString("source")
		level, _ := cmd.Flags().GetString("level")
		minScore, _ := cmd.Flags().GetFloat64("min-score")
		topic, _ := cmd.Flags().GetString("topic")
		limit, _ := cmd.Flags().GetInt("limit")

		params := url.Values{}
		params.Set("q", query)
		params.Set("limit", strconv.Itoa(limit))
		if contentType != "" {
			params.Set("content_type", contentType)
		}
		if source != "" {
			params.Set("source", source)
		}
		if level != "" {
			params.Set("quality_level", level)
		}
		if minScore > 0 {
			params.Set("min_score", strconv.FormatFloat(minScore, 'f', -1, 64))
		}
		if topic != "" {
			params.Set("topic", topic)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/search?"+params.Encode())
		if err != nil {
			return err
		}

		var results []storage.ContentSummary
		if err := decodeJSON(resp, &results); err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for i, r := range results {
			fmt.Printf("\n%s %s [%s]\n",
				colorize(colorBold, fmt.Sprintf("%d.", i+1)),
				r.Title,
				colorize(levelColor(r.QualityLevel), fmt.Sprintf("%.1f %s", r.QualityScore, r.QualityLevel)),
			)
			fmt.Printf("   %s  %s · %s · %d words\n", colorize(colorCyan, r.ID), r.ContentType, r.Source, r.WordCount)
			if r.Summary != "" {
				summary := r.Summary
				if len(summary) > 300 {
					summary = summary[:300] + "..."
				}
				fmt.Printf("   %s\n", summary)
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().String("type", "", "filter by content type")
	searchCmd.Flags().String("source", "", "filter by source")
	searchCmd.Flags().String("level", "", "filter by quality level")
	searchCmd.Flags().Float64("min-score", 0, "minimum quality score")
	searchCmd.Flags().String("topic", "", "filter by topic")
	searchCmd.Flags().Int("limit", 20, "maximum number of results")
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/stats")
		if err != nil {
			return err
		}

		var stats storage.Statistics
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("Total content", "%d", stats.TotalContent)
		printStatus("Total words", "%d", stats.TotalWords)
		printStatus("Avg quality", "%.2f", stats.AvgQualityScore)
		printStatus("Database size", "%s", byteLabel(stats.DatabaseSize))
		for ct, n := range stats.ByType {
			printStatus("  "+ct, "%d", n)
		}
		if len(stats.TopKeywords) > 0 {
			keywords := make([]string, 0, len(stats.TopKeywords))
			for _, k := range stats.TopKeywords {
				keywords = append(keywords, fmt.Sprintf("%s (%d)", k.Keyword, k.Count))
				if len(keywords) == 10 {
					break
				}
			}
			printStatus("Top keywords", "%s", strings.Join(keywords, ", "))
		}
		return nil
	},
}

func byteLabel(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// --- jobs ---

var jobsCmd = &cobra.Command{
	Use:   "jobs [id]",
	Short: "List ingestion jobs, or show one by id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			resp, err := client.get(cmd.Context(), "/jobs/"+args[0])
			if err != nil {
				return err
			}
			var job any
			if err := decodeJSON(resp, &job); err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(job)
		}

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		params := url.Values{}
		params.Set("limit", strconv.Itoa(limit))
		if status != "" {
			params.Set("status", status)
		}

		resp, err := client.get(cmd.Context(), "/jobs?"+params.Encode())
		if err != nil {
			return err
		}

		var jobs []coordinator.JobInfo
		if err := decodeJSON(resp, &jobs); err != nil {
			return err
		}

		if len(jobs) == 0 {
			fmt.Println("No jobs found.")
			return nil
		}

		for _, job := range jobs {
			fmt.Printf("%s  %-22s  %-9s  %3.0f%%  %s\n",
				colorize(colorCyan, job.ID[:8]),
				job.Type,
				job.Status,
				job.Progress,
				job.StartTime.Local().Format("2006-01-02 15:04:05"),
			)
		}
		return nil
	},
}

func init() {
	jobsCmd.Flags().String("status", "", "filter by status (running, completed, failed)")
	jobsCmd.Flags().Int("limit", 20, "maximum number of jobs to list")
}

// --- collections ---

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Manage content collections",
}

var collectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/collections")
		if err != nil {
			return err
		}

		var collections []storage.Collection
		if err := decodeJSON(resp, &collections); err != nil {
			return err
		}

		if len(collections) == 0 {
			fmt.Println("No collections found.")
			return nil
		}

		for _, c := range collections {
			fmt.Printf("%s  %d items", colorize(colorBold, c.Name), c.ItemCount)
			if c.Description != "" {
				fmt.Printf("  — %s", c.Description)
			}
			fmt.Println()
		}
		return nil
	},
}

var collectionsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a collection (stored content is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/collections/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted collection %s", args[0])
		return nil
	},
}

func init() {
	collectionsCmd.AddCommand(collectionsListCmd)
	collectionsCmd.AddCommand(collectionsDeleteCmd)
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the knowledge base as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/export")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
		}

		var writer io.Writer = os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		}

		n, err := io.Copy(writer, resp.Body)
		if err != nil {
			return fmt.Errorf("writing export: %w", err)
		}

		if output != "" {
			printSuccess("Exported %s to %s", byteLabel(n), output)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "", "output file path (default: stdout)")
}

// --- cleanup ---

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove low-quality and stale content",
	RunE: func(cmd *cobra.Command, args []string) error {
		minScore, _ := cmd.Flags().GetFloat64("min-score")
		maxAgeDays, _ := cmd.Flags().GetInt("max-age-days")
		confirm, _ := cmd.Flags().GetBool("confirm")

		if !confirm {
			printWarning("This will permanently delete content below quality %.1f (and stale mediocre content older than %d days). Use --confirm to proceed.", minScore, maxAgeDays)
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/cleanup", map[string]any{
			"min_score":    minScore,
			"max_age_days": maxAgeDays,
		})
		if err != nil {
			return err
		}

		var result map[string]int
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Removed %d items", result["removed"])
		return nil
	},
}

func init() {
	cleanupCmd.Flags().Float64("min-score", 2.0, "delete content scored below this")
	cleanupCmd.Flags().Int("max-age-days", 180, "delete mediocre content older than this many days")
	cleanupCmd.Flags().Bool("confirm", false, "confirm deletion")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

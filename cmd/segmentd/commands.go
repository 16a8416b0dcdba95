package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corrift/segmentd/internal/config"
)

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze <需求描述>",
	Short: "Run an audience analysis against the running server",
	Long: `Run an audience analysis against the running server.

Examples:
  segmentd analyze "为VVIP客户做新品手袋推广"
  segmentd analyze --session 3f1c... "缩小到一线城市"
  segmentd analyze --json "帮我圈选高消费客户"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := strings.Join(args, " ")
		sessionID, _ := cmd.Flags().GetString("session")
		rawJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{
			"prompt": prompt,
			"stream": true,
		}
		if sessionID != "" {
			body["session_id"] = sessionID
		}

		resp, err := client.post(cmd.Context(), "/v1/analysis", body)
		if err != nil {
			return err
		}

		return streamSSE(resp, func(eventType, data string) {
			if rawJSON {
				fmt.Println(data)
				return
			}
			printAnalysisEvent(eventType, data)
		})
	},
}

// printAnalysisEvent renders one streamed event for the terminal.
func printAnalysisEvent(eventType, data string) {
	var ev struct {
		Stage    string `json:"stage"`
		Title    string `json:"title"`
		Delta    string `json:"delta"`
		Summary  string `json:"summary"`
		Response string `json:"response"`
		Message  string `json:"message"`
		Result   *struct {
			AudienceSize int `json:"audience_size"`
			TopAudience  []struct {
				Name       string  `json:"name"`
				Tier       string  `json:"tier"`
				MatchScore float64 `json:"matchScore"`
			} `json:"top_audience"`
			Metrics struct {
				ConversionRate   float64 `json:"conversionRate"`
				EstimatedRevenue float64 `json:"estimatedRevenue"`
				ROI              float64 `json:"roi"`
			} `json:"metrics"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return
	}

	switch eventType {
	case "node_start":
		printStep("%s", ev.Title)
	case "reasoning":
		fmt.Fprint(os.Stderr, ev.Delta)
	case "node_complete":
		fmt.Fprintln(os.Stderr)
		printSuccess("%s：%s", ev.Title, ev.Summary)
	case "workflow_complete":
		fmt.Println()
		fmt.Println(ev.Response)
		if ev.Result != nil {
			fmt.Println()
			printStatus("圈选人数", "%d", ev.Result.AudienceSize)
			printStatus("预估转化率", "%.1f%%", ev.Result.Metrics.ConversionRate*100)
			printStatus("预估收入", "¥%.0f", ev.Result.Metrics.EstimatedRevenue)
			printStatus("ROI", "%.1f%%", ev.Result.Metrics.ROI)
			for _, m := range ev.Result.TopAudience {
				fmt.Fprintf(os.Stderr, "    %s  %s  %.1f\n", m.Name, m.Tier, m.MatchScore)
			}
		}
	case "clarification", "modification":
		fmt.Println()
		fmt.Println(ev.Response)
	case "error":
		printError("%s", ev.Message)
	}
}

func init() {
	analyzeCmd.Flags().String("session", "", "session id for multi-turn refinement")
	analyzeCmd.Flags().Bool("json", false, "print raw event JSON instead of formatted output")
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage analysis sessions",
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/sessions", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result["session_id"])
		return nil
	},
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/sessions")
		if err != nil {
			return err
		}

		var sessions []struct {
			ID        string `json:"session_id"`
			CreatedAt string `json:"created_at"`
			Turns     int    `json:"turns"`
			Goal      string `json:"goal"`
		}
		if err := decodeJSON(resp, &sessions); err != nil {
			return err
		}

		if len(sessions) == 0 {
			fmt.Println("no live sessions")
			return nil
		}
		for _, s := range sessions {
			goal := s.Goal
			if goal == "" {
				goal = "-"
			}
			fmt.Printf("  %s  %2d轮  %s\n", colorize(colorBold, s.ID), s.Turns, goal)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session's turns and accumulated context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/sessions/"+args[0])
		if err != nil {
			return err
		}

		var session any
		if err := decodeJSON(resp, &session); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(session)
	},
}

var sessionsResetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Discard a session and print its replacement id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/v1/sessions/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Session reset, replacement: %s", result["session_id"])
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsNewCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsResetCmd)
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

		keys := config.ShowAll(cfg)
		for _, k := range keys {
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

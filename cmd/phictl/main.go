// Package main はCLIツールのエントリポイント。
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	apiURL   string
	output   string
	timeout  time.Duration
	logLevel string
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	rootCmd := &cobra.Command{
		Use:           "phictl",
		Short:         "Phigrate migration status CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if apiURL == "" {
				apiURL = os.Getenv("PHICTL_API_URL")
			}
			httpClient = &http.Client{Timeout: timeout}

			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				level = slog.LevelWarn
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set PHICTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "WARN", "Log level: DEBUG, INFO, WARN, ERROR")

	// サブコマンド登録
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(projectsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("phictl version %s\n", version)
		},
	}
}

// projectsCmd はAPIサーバーに登録されたプロジェクト一覧を表示する。
func projectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects registered on the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set PHICTL_API_URL)")
			}

			resp, err := httpClient.Get(apiURL + "/v1/projects")
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}

			if resp.StatusCode != http.StatusOK {
				return handleErrorResponse(resp.StatusCode, body)
			}

			if output == "json" {
				fmt.Println(string(body))
				return nil
			}

			var result struct {
				Projects []projectRow `json:"projects"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			renderProjects(cmd.OutOrStdout(), result.Projects)
			return nil
		},
	}
}

// projectRow は GET /v1/projects の1件分。
type projectRow struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ConfigPath string `json:"config_path"`
	Section    string `json:"section"`
}

func renderProjects(w io.Writer, projects []projectRow) {
	if len(projects) == 0 {
		_, _ = fmt.Fprintln(w, "(no projects)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "TITLE", "SECTION", "CONFIG_PATH"})
	for _, p := range projects {
		t.AppendRow(table.Row{p.ID, p.Title, p.Section, p.ConfigPath})
	}
	t.Render()
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("Error: %s", errResp.Message)
	}
	return fmt.Errorf("Error: server returned status %d", statusCode)
}

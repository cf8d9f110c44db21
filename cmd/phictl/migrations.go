package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"phigrate-web/config"
	"phigrate-web/internal/domain"
	"phigrate-web/internal/infra"
	"phigrate-web/internal/repository"
	"phigrate-web/internal/usecase"
)

// exitError はコマンドの終了コードを保持する。
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("phigrate exited with status %d", e.code)
}

// projectFlags はローカルの設定ファイルを指定するフラグ。
type projectFlags struct {
	configPath string
	section    string
}

func (f *projectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Application config file (INI)")
	cmd.Flags().StringVarP(&f.section, "section", "s", "", "Environment section in the application config")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("section")
}

// newMigrationService はローカル実行用のMigrationServiceを組み立てる。
func newMigrationService() (*usecase.MigrationService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return usecase.NewMigrationService(
		repository.NewConfigRepository(),
		repository.NewMigrationFileRepository(),
		repository.NewMigrationRepository(repository.MySQLDialer, cfg.DBTimeout),
		infra.NewPhigrateRunner(cfg.PhigrateBin, cfg.MigrateTimeout, cfg.OutputLimit),
	), nil
}

func statusCmd() *cobra.Command {
	var (
		flags projectFlags
		desc  bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  "Compare migration files with the versions recorded in schema_migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newMigrationService()
			if err != nil {
				return err
			}

			collection, _, err := svc.Reconcile(cmd.Context(), flags.configPath, flags.section)
			if err != nil {
				return err
			}

			if output == "json" {
				body, err := json.MarshalIndent(collection, "", "  ")
				if err != nil {
					return fmt.Errorf("encoding collection: %w", err)
				}
				fmt.Println(string(body))
				return nil
			}

			migrations := collection.Ascending()
			if desc {
				migrations = collection.Descending()
			}

			renderMigrations(os.Stdout, migrations)

			if collection.IsUpToDate() {
				fmt.Println("\nUp to date.")
			} else {
				fmt.Println("\nPending changes.")
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort by version descending")
	return cmd
}

// renderMigrations はマイグレーション一覧を表形式で出力する。
func renderMigrations(w io.Writer, migrations []*domain.Migration) {
	if len(migrations) == 0 {
		_, _ = fmt.Fprintln(w, "(no migrations)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"VERSION", "NAME", "STATUS", "FILE"})
	for _, m := range migrations {
		file := m.Basename
		if file == "" {
			file = "-"
		}
		t.AppendRow(table.Row{m.ID, m.Name, m.Status.String(), file})
	}
	t.Render()
}

func showCmd() *cobra.Command {
	var (
		flags projectFlags
		id    string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the content of a migration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newMigrationService()
			if err != nil {
				return err
			}
			paths, err := svc.LoadConfig(flags.configPath, flags.section)
			if err != nil {
				return err
			}
			content, err := svc.ReadMigrationContent(cmd.Context(), paths.MigrationDir, id)
			if err != nil {
				return err
			}
			if content == nil {
				return fmt.Errorf("migration %s not found in %s", id, paths.MigrationDir)
			}
			_, err = os.Stdout.Write(content)
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&id, "id", "", "Migration id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func migrateCmd() *cobra.Command {
	var (
		flags projectFlags
		id    string
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run phigrate db:migrate up or down to a version",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newMigrationService()
			if err != nil {
				return err
			}
			paths, err := svc.LoadConfig(flags.configPath, flags.section)
			if err != nil {
				return err
			}

			// Ctrl-C で子プロセスを停止する
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := svc.RunMigration(ctx, paths.ConfigPath, paths.DBConfigPath, paths.Section, id)
			if result != nil {
				fmt.Fprint(os.Stdout, result.Stdout)
				fmt.Fprint(os.Stderr, result.Stderr)
				if result.Truncated {
					fmt.Fprintln(os.Stderr, "(output truncated)")
				}
			}
			if err != nil {
				return err
			}
			if result.ExitCode != 0 {
				return &exitError{code: result.ExitCode}
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&id, "id", "", "Target migration id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func checkCmd() *cobra.Command {
	var flags projectFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the application and database config files",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newMigrationService()
			if err != nil {
				return err
			}
			paths, err := svc.LoadConfig(flags.configPath, flags.section)
			if err != nil {
				return err
			}

			if output == "json" {
				body, err := json.MarshalIndent(map[string]string{
					"config_path":    paths.ConfigPath,
					"section":        paths.Section,
					"migration_dir":  paths.MigrationDir,
					"db_config_path": paths.DBConfigPath,
				}, "", "  ")
				if err != nil {
					return fmt.Errorf("encoding result: %w", err)
				}
				fmt.Println(string(body))
				return nil
			}

			fmt.Printf("config:         %s\n", paths.ConfigPath)
			fmt.Printf("section:        %s\n", paths.Section)
			fmt.Printf("migrations dir: %s\n", paths.MigrationDir)
			fmt.Printf("database:       %s\n", paths.DBConfigPath)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// exitCode はエラーからプロセスの終了コードを決める。
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, domain.ErrRunCanceled) {
		return 130
	}
	return 1
}


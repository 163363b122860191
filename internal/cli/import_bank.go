package cli

import (
	"context"
	"fmt"
	"os"

	"saa-quiz-service/internal/config"
	pgstore "saa-quiz-service/internal/infra/postgres"
	"saa-quiz-service/internal/logger"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type importBankOptions struct {
	id    string
	title string
	file  string
}

// NewImportBankCmd stores a JSON question bank in postgres so banks configured with
// the postgres loader can serve it.
func NewImportBankCmd(configPath *string) *cobra.Command {
	var opts importBankOptions
	cmd := &cobra.Command{
		Use:   "import-bank",
		Short: "Import a JSON question bank into postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportBank(cmd.Context(), *configPath, opts)
		},
	}
	cmd.Flags().StringVar(&opts.id, "id", "", "bank source id")
	cmd.Flags().StringVar(&opts.title, "title", "", "bank title")
	cmd.Flags().StringVar(&opts.file, "file", "", "path to the bank JSON file")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runImportBank(ctx context.Context, configPath string, opts importBankOptions) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	raw, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("read bank file: %w", err)
	}
	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	title := opts.title
	if title == "" {
		title = opts.id
	}
	count, err := pgstore.NewBankLoader(pool).UpsertBank(ctx, opts.id, title, raw)
	if err != nil {
		return err
	}
	log.Info("bank imported", zap.String("id", opts.id), zap.Int("questions", count))
	return nil
}

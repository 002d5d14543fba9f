package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigkaa/blockhood/internal/config"
	"github.com/bigkaa/blockhood/internal/database"
)

// newMigrateCommand — применение или откат миграций без запуска сервера.
func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Применить миграции (up) или откатить последнюю (down)",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(database.Up), string(database.Down)},
		RunE: func(_ *cobra.Command, args []string) error {
			dir := database.Up
			if len(args) == 1 {
				dir = database.Direction(args[0])
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("загрузка конфигурации: %w", err)
			}
			logger := config.SetupLogger(cfg)

			return database.MigrateDirection(cfg, dir, logger)
		},
	}
}

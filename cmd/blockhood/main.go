// Точка входа Blockhood API — backend сообщества: гайды, события, вакансии.
// Команды: serve (HTTP API), migrate (миграции БД), version.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bigkaa/blockhood/internal/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}

// newRootCommand создаёт корневую команду blockhood.
// Вся конфигурация — переменные окружения BH_*.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "blockhood",
		Short:         "Blockhood API — гайды, события и вакансии сообщества",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Без подкоманды запускается сервер
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Version)
		},
	}
}

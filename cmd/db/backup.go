package db

import (
	"bytes"
	"context"

	"github.com/markusressel/fan2pwm/cmd/global"
	"github.com/markusressel/fan2pwm/internal/configuration"
	"github.com/markusressel/fan2pwm/internal/ui"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup <file>",
	Short: "Write a snapshot of the database of a running daemon to the given file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configuration.DetectAndReadConfigFile()
		configuration.LoadConfig()

		var buf bytes.Buffer
		size, err := global.NewClient().Backup(context.Background(), &buf)
		if err != nil {
			return err
		}
		// the target is replaced in a single rename, a failed download never leaves a partial file behind
		if err := atomic.WriteFile(args[0], &buf); err != nil {
			return err
		}
		ui.Success("Wrote %d bytes to %s", size, args[0])
		return nil
	},
}

func init() {
	Command.AddCommand(backupCmd)
}

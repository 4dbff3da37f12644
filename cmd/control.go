package cmd

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/markusressel/fan2pwm/cmd/global"
	"github.com/markusressel/fan2pwm/internal/client"
	"github.com/markusressel/fan2pwm/internal/state"
	"github.com/markusressel/fan2pwm/internal/ui"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var (
	overrideTimeout time.Duration
	eventLimit      int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the runtime state of a running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loadConfig()
		status, err := global.NewClient().Status(context.Background())
		if err != nil {
			return err
		}
		printTables(statusTables(status))
		return nil
	},
}

var overrideCmd = &cobra.Command{
	Use:   "override <duty>",
	Short: "Pin the fan to the given duty (0..100), safety limits still apply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		duty, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid duty '%s': %w", args[0], err)
		}
		loadConfig()

		var timeout *time.Duration
		if overrideTimeout > 0 {
			timeout = &overrideTimeout
		}
		result, err := global.NewClient().Override(context.Background(), duty, timeout)
		if err != nil {
			return err
		}
		printMode(result)
		return nil
	},
}

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Return to curve based control",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loadConfig()
		result, err := global.NewClient().Auto(context.Background())
		if err != nil {
			return err
		}
		printMode(result)
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print the most recent events of a running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loadConfig()
		events, err := global.NewClient().Events(context.Background(), eventLimit)
		if err != nil {
			return err
		}
		var rows [][]string
		for _, event := range events {
			rows = append(rows, []string{
				formatTimestamp(event.CreatedAt), string(event.Level), event.Message, event.Context,
			})
		}
		if len(rows) <= 0 {
			ui.Printfln("No events yet")
			return nil
		}
		printTables([]table.Table{{Headers: []string{"Time", "Level", "Message", "Context"}, Rows: rows}})
		return nil
	},
}

func printMode(result client.ModeResponse) {
	if result.Mode == state.ModeAuto {
		ui.Success("Mode: auto")
		return
	}
	duty := "?"
	if result.Override.DutyPercent != nil {
		duty = strconv.Itoa(*result.Override.DutyPercent)
	}
	until := "until cleared"
	if result.Override.UntilTs != nil {
		until = "until " + formatTimestamp(*result.Override.UntilTs)
	}
	ui.Success("Mode: override, duty %s%% %s", duty, until)
}

func statusTables(status state.Snapshot) []table.Table {
	mode := string(status.Mode)
	if status.Override.DutyPercent != nil {
		mode = fmt.Sprintf("%s (%d%%)", mode, *status.Override.DutyPercent)
	}
	rows := [][]string{
		{"Mode", mode},
		{"Duty", fmt.Sprintf("%d%%", status.CurrentDutyPercent)},
		{"Target", fmt.Sprintf("%d%%", status.TargetDutyPercent)},
	}
	if status.SafetyReason != "" {
		rows = append(rows, []string{"Safety", status.SafetyReason})
	}

	names := make([]string, 0, len(status.TempsC))
	for name := range status.TempsC {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rows = append(rows, []string{name, fmt.Sprintf("%.1f°C", status.TempsC[name])})
	}
	tables := []table.Table{{Headers: []string{"", ""}, Rows: rows}}

	var errorRows [][]string
	for _, entry := range status.LastErrors {
		errorRows = append(errorRows, []string{formatTimestamp(entry.Ts), entry.Message})
	}
	if len(errorRows) > 0 {
		tables = append(tables, table.Table{Headers: []string{"Time", "Error"}, Rows: errorRows})
	}
	return tables
}

func formatTimestamp(ts float64) string {
	seconds := int64(ts)
	nanos := int64((ts - float64(seconds)) * float64(time.Second))
	return time.Unix(seconds, nanos).Format(time.DateTime)
}

func init() {
	overrideCmd.Flags().DurationVarP(&overrideTimeout, "timeout", "t", 0, "Revert to auto mode after this duration, f.ex. 10m (max 24h)")
	eventsCmd.Flags().IntVarP(&eventLimit, "limit", "n", 20, "Number of events to print")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(autoCmd)
	rootCmd.AddCommand(eventsCmd)
}

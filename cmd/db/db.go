package db

import (
	"github.com/spf13/cobra"
)

var Command = &cobra.Command{
	Use:              "db",
	Short:            "Database related commands",
	TraverseChildren: true,
}

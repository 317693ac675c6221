package main

import (
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the database metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		info, err := db.Info(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), output, map[string]interface{}{
			"db_name":    info.Name,
			"doc_count":  info.DocCount,
			"update_seq": info.UpdateSeq,
		})
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a document",
	Long:  `Delete loads the document then destroys it, running the callbacks of its type.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		doc, err := db.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("document %s not found", args[0])
		}
		if err := db.Destroy(cmd.Context(), doc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Document deleted: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

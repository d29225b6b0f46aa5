package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/scribe"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [note-id]",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseNoteID(args[0])
		if err != nil {
			fatal("Error", err)
		}

		eng, err := scribe.New(repositoryURI(), engineOptions()...)
		if err != nil {
			fatal("Error initializing scribe", err)
		}
		ctx := context.Background()
		defer eng.Close(ctx)

		if err := eng.DeleteNote(ctx, id); err != nil {
			fatal("Error deleting note", err)
		}
		fmt.Printf("Note deleted: %d\n", id)
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

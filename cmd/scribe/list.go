package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/aretw0/scribe"
	"github.com/aretw0/scribe/pkg/core"
)

var (
	listJSON  bool
	listMatch string
)

var listCmd = &cobra.Command{
	Use:   "list [subject-id]",
	Short: "List the notes of a subject",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		subjectID, err := parseSubjectID(args[0])
		if err != nil {
			fatal("Error", err)
		}
		if listMatch != "" && !doublestar.ValidatePattern(listMatch) {
			fatal("Error", fmt.Errorf("invalid pattern %q", listMatch))
		}

		eng, err := scribe.New(repositoryURI(), engineOptions()...)
		if err != nil {
			fatal("Error initializing scribe", err)
		}
		ctx := context.Background()
		defer eng.Close(ctx)

		list, err := eng.ListNotes(ctx, subjectID)
		if err != nil {
			fatal("Error listing notes", err)
		}

		filtered := filterNotes(list.Notes, listMatch)

		if listJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			out := core.NoteList{Notes: filtered, Total: len(filtered), SubjectID: subjectID}
			if err := encoder.Encode(out); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}

		for _, note := range filtered {
			fmt.Printf("%d - %s\n", note.ID, note.Title)
		}
	},
}

// filterNotes keeps the notes whose lowercased title matches pattern.
// An empty pattern keeps everything.
func filterNotes(notes []core.Note, pattern string) []core.Note {
	out := []core.Note{}
	for _, note := range notes {
		if pattern != "" {
			ok, _ := doublestar.Match(strings.ToLower(pattern), strings.ToLower(note.Title))
			if !ok {
				continue
			}
		}
		out = append(out, note)
	}
	return out
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringVar(&listMatch, "match", "", "Filter notes by a glob on the title (e.g. 'chapter *')")
}

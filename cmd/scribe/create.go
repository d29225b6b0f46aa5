package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/scribe"
	"github.com/aretw0/scribe/pkg/document"
)

var (
	createText string
	createFile string
)

var createCmd = &cobra.Command{
	Use:   "create [subject-id] [title]",
	Short: "Create a note in a subject",
	Long: `Create adds a note to a subject. The body is taken from --file (a
serialized document) or --text (plain text, one paragraph per line).`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		subjectID, err := parseSubjectID(args[0])
		if err != nil {
			fatal("Error", err)
		}
		title := strings.Join(args[1:], " ")

		body, err := createBody()
		if err != nil {
			fatal("Error reading body", err)
		}

		eng, err := scribe.New(repositoryURI(), engineOptions()...)
		if err != nil {
			fatal("Error initializing scribe", err)
		}
		ctx := context.Background()
		defer eng.Close(ctx)

		note, err := eng.CreateNote(ctx, subjectID, title, body)
		if err != nil {
			fatal("Error creating note", err)
		}
		fmt.Printf("Note created: %d %s\n", note.ID, note.Title)
	},
}

func createBody() (string, error) {
	if createFile != "" {
		data, err := os.ReadFile(createFile)
		if err != nil {
			return "", err
		}
		root, err := document.Parse(string(data))
		if err != nil {
			return "", err
		}
		return document.Encode(root)
	}
	if createText == "" {
		return "", nil
	}
	root := document.Empty()
	for _, line := range strings.Split(createText, "\n") {
		root.Content = append(root.Content, document.Paragraph(line))
	}
	return document.Encode(root)
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createText, "text", "", "Plain text body")
	createCmd.Flags().StringVar(&createFile, "file", "", "Serialized document file")
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/scribe"
	"github.com/aretw0/scribe/pkg/adapters/api"
	"github.com/aretw0/scribe/pkg/core"
)

var subjectCmd = &cobra.Command{
	Use:   "subject [name]",
	Short: "Create a subject",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := strings.Join(args, " ")
		repo, err := scribe.Init(repositoryURI(), engineOptions()...)
		if err != nil {
			fatal("Error initializing scribe", err)
		}
		defer closeRepository(repo)

		creator, ok := repo.(api.SubjectCreator)
		if !ok {
			fatal("Error creating subject", fmt.Errorf("adapter %T cannot create subjects", repo))
		}
		id, err := creator.CreateSubject(context.Background(), name)
		if err != nil {
			fatal("Error creating subject", err)
		}
		fmt.Printf("Subject created: %d %s\n", id, name)
	},
}

func closeRepository(repo core.Repository) {
	if closer, ok := repo.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			slog.Warn("close repository", "error", err)
		}
	}
}

func init() {
	rootCmd.AddCommand(subjectCmd)
}

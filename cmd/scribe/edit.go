package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/scribe"
	"github.com/aretw0/scribe/pkg/adapters/fs"
	sessionevents "github.com/aretw0/scribe/pkg/adapters/lifecycle"
	"github.com/aretw0/scribe/pkg/adapters/metrics"
	"github.com/aretw0/scribe/pkg/core"
	"github.com/aretw0/scribe/pkg/document"
	"github.com/aretw0/scribe/pkg/session"
)

var (
	editFile        string
	editMetricsAddr string
)

var editCmd = &cobra.Command{
	Use:   "edit [note-id]",
	Short: "Edit a note through a watched file with autosave",
	Long: `Edit writes the note document to a JSON file and watches it. Every
change saved to the file is applied as an edit and autosaved after the
configured quiet period.

Commands on stdin:
  ctrl+s, s   save now
  status      print the save status
  q, quit     save pending changes and exit`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseNoteID(args[0])
		if err != nil {
			fatal("Error", err)
		}
		logger := slog.Default()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := document.NewStore(document.WithLogger(logger))
		recorder := metrics.New()
		eng, err := scribe.New(repositoryURI(), engineOptions(
			scribe.WithDocument(store),
			scribe.WithMetrics(recorder),
		)...)
		if err != nil {
			fatal("Error initializing scribe", err)
		}

		if editMetricsAddr != "" {
			go func() {
				srv := &http.Server{Addr: editMetricsAddr, Handler: recorder.Handler(), ReadHeaderTimeout: 5 * time.Second}
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Warn("metrics listener stopped", "error", err)
				}
			}()
		}

		if err := runEdit(ctx, eng, store, id, logger); err != nil {
			_ = eng.Close(context.Background())
			fatal("Edit failed", err)
		}

		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := eng.Close(closeCtx); err != nil {
			fatal("Error closing session", err)
		}
	},
}

func runEdit(ctx context.Context, eng *scribe.Engine, store *document.Store, id core.NoteID, logger *slog.Logger) error {
	note, err := eng.OpenNote(ctx, id)
	if err != nil {
		return fmt.Errorf("open note: %w", err)
	}

	path := editFile
	if path == "" {
		path = filepath.Join(os.TempDir(), fmt.Sprintf("scribe-note-%d.json", note.ID))
	}
	if err := fs.WriteDocument(path, store.Serialize()); err != nil {
		return err
	}

	watcher := fs.NewDocumentWatcher(path, store.Replace, fs.WithWatchLogger(logger))
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop(context.Background())

	events, dropped, cancelEvents := sessionevents.Channel(eng.Session, 32)
	defer cancelEvents()
	source := sessionevents.NewSource(events)
	if err := source.Start(ctx); err != nil {
		return err
	}
	go func() {
		for ev := range source.Events() {
			fmt.Fprintln(os.Stderr, ev.String())
		}
	}()

	fmt.Printf("Editing %d %q in %s\n", note.ID, note.Title, path)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return finishEdit(eng, dropped, logger)
		case line, ok := <-lines:
			if !ok {
				return finishEdit(eng, dropped, logger)
			}
			switch line {
			case "":
			case "q", "quit":
				return finishEdit(eng, dropped, logger)
			case "status":
				printStatus(eng.Session.Status())
			default:
				chord := line
				if chord == "s" {
					chord = session.KeySave
				}
				handled, err := eng.Session.HandleKey(ctx, chord)
				if err != nil {
					fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
				} else if !handled {
					fmt.Fprintf(os.Stderr, "unknown command %q\n", line)
				}
			}
		}
	}
}

// finishEdit saves what the debounce timer has not saved yet.
func finishEdit(eng *scribe.Engine, dropped func() int, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if eng.Session.Status().HasUnsavedChanges {
		if err := eng.Session.ManualSave(ctx); err != nil {
			return err
		}
	}
	if n := dropped(); n > 0 {
		logger.Debug("session events dropped", "count", n)
	}
	return nil
}

func printStatus(s session.Status) {
	saved := "never"
	if s.LastSavedAt != nil {
		saved = s.LastSavedAt.Format(time.Kitchen)
	}
	fmt.Printf("note=%d state=%s unsaved=%t last_saved=%s\n", s.NoteID, s.State, s.HasUnsavedChanges, saved)
	if s.LastError != nil {
		fmt.Printf("last error: %v\n", s.LastError)
	}
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringVar(&editFile, "file", "", "File mirroring the document (default: a file in the temp dir)")
	editCmd.Flags().StringVar(&editMetricsAddr, "metrics-addr", "", "Serve save metrics on this address while editing")
}

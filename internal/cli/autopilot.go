package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/apresai/newsroom/internal/app"
	"github.com/apresai/newsroom/internal/audio"
	"github.com/apresai/newsroom/internal/audio/wav"
	"github.com/apresai/newsroom/internal/pipeline"
	"github.com/apresai/newsroom/internal/production"
	"github.com/apresai/newsroom/internal/progress"
)

var autopilotCmd = &cobra.Command{
	Use:   "autopilot",
	Short: "Run every stage without stopping, approving each gate and taking the first candidates",
	RunE:  runAutopilot,
}

var (
	flagTheme        string
	flagCategory     string
	flagLine         string
	flagMaxRevisions int
)

// emptyBatchNotes is sent when a gate produced no candidates.
const emptyBatchNotes = "None of the previous options could be used. Propose new, simpler ones in the required format."

func init() {
	autopilotCmd.Flags().StringVarP(&flagTheme, "theme", "i", "", "Theme: a topic, URL, PDF path or text file path")
	autopilotCmd.Flags().StringVarP(&flagCategory, "category", "c", "medium", "Category: short (400 words), medium (1000), long (2000)")
	autopilotCmd.Flags().StringVarP(&flagLine, "line", "l", "", "Analytical line to examine the theme from")
	autopilotCmd.Flags().IntVar(&flagMaxRevisions, "max-revisions", 2, "Revisions to request when a gate yields no candidates")
}

func runAutopilot(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(flagTheme) == "" || strings.TrimSpace(flagLine) == "" {
		return fmt.Errorf("both --theme (-i) and --line (-l) are required")
	}
	category, err := production.ParseCategory(flagCategory)
	if err != nil {
		return err
	}
	if flagMaxRevisions < 0 {
		return fmt.Errorf("--max-revisions must not be negative (got %d)", flagMaxRevisions)
	}

	logOut := io.Discard
	if flagVerbose {
		logOut = os.Stderr
	}
	sess, err := openSession(cmd.Context(), logOut)
	if err != nil {
		return err
	}
	defer sess.Close()

	runID, err := app.NewRunID()
	if err != nil {
		return err
	}

	cb := progress.NopCallback
	if !flagVerbose {
		r := progress.NewRenderer(os.Stderr)
		defer r.Finish()
		cb = r.Handle
	}

	m := sess.app.NewMachine(runID, cb)
	brief := production.Brief{Theme: flagTheme, Category: category, AnalyticalLine: flagLine}
	if err := autopilot(cmd.Context(), m, brief, flagMaxRevisions); err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), m.Snapshot())
	return nil
}

// autopilot drives m from Input to Done.
func autopilot(ctx context.Context, m *pipeline.Machine, brief production.Brief, maxRevisions int) error {
	if err := m.Submit(ctx, brief); err != nil {
		return err
	}
	// outline, then script
	for range 2 {
		if err := m.Approve(ctx); err != nil {
			return err
		}
	}

	if err := ensureCandidates(ctx, m, maxRevisions, func(s production.State) bool { return len(s.Images) > 0 }); err != nil {
		return fmt.Errorf("cover images: %w", err)
	}
	if err := m.SelectImage(m.Snapshot().Images[0].ID); err != nil {
		return err
	}
	if err := m.Approve(ctx); err != nil {
		return err
	}

	if err := ensureCandidates(ctx, m, maxRevisions, func(s production.State) bool { return len(s.Titles) > 0 }); err != nil {
		return fmt.Errorf("titles: %w", err)
	}
	if err := m.SelectTitle(m.Snapshot().Titles[0]); err != nil {
		return err
	}
	// titles, then caption
	for range 2 {
		if err := m.Approve(ctx); err != nil {
			return err
		}
	}
	return nil
}

var errNoCandidates = errors.New("no candidates were produced")

// ensureCandidates requests revisions at the current gate until it has
// candidates or the revision budget runs out.
func ensureCandidates(ctx context.Context, m *pipeline.Machine, maxRevisions int, ok func(production.State) bool) error {
	for attempt := 0; !ok(m.Snapshot()); attempt++ {
		if attempt >= maxRevisions {
			return errNoCandidates
		}
		if err := m.RequestRevision(ctx, emptyBatchNotes); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(w io.Writer, s production.State) {
	fmt.Fprintf(w, "\nRun %s (%s)\n", s.RunID, s.Stage)
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("─", 50))

	if s.SelectedTitle != nil {
		fmt.Fprintf(w, "Title:   %s\n", *s.SelectedTitle)
	}
	fmt.Fprintf(w, "Script:  %d words in %d audio segment(s)\n", audio.WordCount(s.Script), len(s.AudioSegments))
	for _, seg := range s.AudioSegments {
		fmt.Fprintf(w, "         segment %d: %d words, %s\n", seg.Index+1, audio.WordCount(seg.Text), wav.DefaultFormat.Duration(len(seg.PCM)).Round(time.Second))
	}
	fmt.Fprintf(w, "Images:  %d candidate(s)", len(s.Images))
	if s.SelectedImageID != nil {
		fmt.Fprintf(w, ", selected #%d", *s.SelectedImageID)
	}
	fmt.Fprintln(w)
	for _, o := range s.ImageOutcomes {
		if o.Status == production.OutcomeSkipped {
			fmt.Fprintf(w, "         skipped %q: %s\n", o.Prompt, o.Reason)
		}
	}
	if s.Caption != "" {
		fmt.Fprintf(w, "\nCaption:\n%s\n", s.Caption)
	}
}

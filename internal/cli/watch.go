package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"qsnap-gateway/internal/app"
	"qsnap-gateway/internal/config"
	"qsnap-gateway/internal/domain"
)

// NewWatchCmd opens a paper and prints its questions until nothing is left to wait for.
func NewWatchCmd(configPath *string) *cobra.Command {
	var solve []int64
	cmd := &cobra.Command{
		Use:   "watch <paperId>",
		Short: "Follow a paper until every question is solved or incomplete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paperID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid paper id %q", args[0])
			}
			ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.LoadOrDefault(*configPath)
			if err != nil {
				return err
			}
			gw, err := buildGateway(ctx, cfg)
			if err != nil {
				return err
			}
			defer gw.Close()

			ws, err := gw.service.Open(ctx, paperID)
			if err != nil {
				return err
			}
			return follow(ctx, cmd.OutOrStdout(), ws, solve)
		},
	}
	cmd.Flags().Int64SliceVar(&solve, "solve", nil, "question ids to (re)generate solutions for")
	return cmd
}

// follow prints every update of ws and returns once polling has settled and the
// requested solves have finished.
func follow(ctx context.Context, out io.Writer, ws *app.Workspace, solve []int64) error {
	updates, cancel := ws.Subscribe()
	defer cancel()

	solvesDone := make(chan struct{})
	var wg sync.WaitGroup
	for _, id := range solve {
		wg.Add(1)
		go func(questionID int64) {
			defer wg.Done()
			if _, err := ws.Solve(ctx, questionID); err != nil {
				fmt.Fprintf(out, "solve Q#%d failed: %v\n", questionID, err)
			}
		}(id)
	}
	go func() {
		wg.Wait()
		close(solvesDone)
	}()

	var latest app.View
	pending := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-solvesDone:
			solvesDone = nil
			pending = false
		case u, ok := <-updates:
			if !ok {
				return domain.ErrWorkspaceClosed
			}
			latest = u.View
			printUpdate(out, u)
			if u.Type == app.UpdateStalled {
				return fmt.Errorf("paper %d: %s", ws.PaperID(), u.Error)
			}
		}
		if !pending && settled(latest) {
			return nil
		}
	}
}

func settled(v app.View) bool {
	return v.WorkspaceID != "" && !v.Polling && !v.Processing
}

func printUpdate(out io.Writer, u app.Update) {
	switch u.Type {
	case app.UpdateSolveFailed:
		fmt.Fprintf(out, "solve failed for question %d: %s\n", u.QuestionID, u.Error)
		return
	case app.UpdateStalled:
		fmt.Fprintf(out, "stopped polling: %s\n", u.Error)
		return
	}
	v := u.View
	state := "idle"
	switch {
	case v.Processing:
		state = "detecting questions"
	case v.Polling:
		state = "solving"
	}
	fmt.Fprintf(out, "[%s] %s: %d solved, %d unsolved, %d incomplete (%s)\n",
		v.UpdatedAt.Format("15:04:05"), v.Paper.Filename, v.Counts.Solved, v.Counts.Unsolved, v.Counts.Incomplete, state)
	for _, q := range v.Questions {
		line := q.Status.String()
		if q.Solving {
			line = "generating"
		}
		if q.Answer != "" {
			line += ", answer " + q.Answer
		}
		fmt.Fprintf(out, "  %-4s #%d %s\n", q.Label, q.ID, line)
	}
	if v.Processing && len(v.Questions) == 0 {
		fmt.Fprintln(out, "  (detecting questions...)")
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

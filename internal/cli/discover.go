package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"resumeflow/internal/errors"
	"resumeflow/internal/session"
	"resumeflow/internal/types"
	"resumeflow/internal/wizard"
	"resumeflow/internal/workflow"

	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [thread-id]",
	Short: "Run the discovery interview",
	Long: `Run the discovery interview for a workflow in the terminal.
Each line you type is sent as an answer. Commands:
  /confirm  finish the interview (requires a minimum number of answers)
  /skip     skip the rest of the interview
  /quit     leave; the conversation is kept and can be resumed later`,
	Args: cobra.ExactArgs(1),
	RunE: withRuntime(runDiscover),
}

var discoverFlags struct {
	ReplyTimeout time.Duration
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverFlags.ReplyTimeout, "reply-timeout", 2*time.Minute, "How long to wait for the next question after an answer")
}

// repl is one interactive interview.
type repl struct {
	ctx     context.Context
	in      *bufio.Scanner
	out     io.Writer
	tracker *workflow.Tracker
	stage   *wizard.Discovery
	printed int
	// question is the last question shown.
	question string
}

func runDiscover(cmd *cobra.Command, args []string, rt *runtime) error {
	ctx := cmd.Context()
	threadID := args[0]
	logger := getLoggerFromContext(ctx)

	state, err := rt.state(ctx, threadID)
	if err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}

	tracker := rt.env.Tracker(threadID, workflow.WithInitialState(state))
	tracker.Start(ctx)
	defer func() { _ = tracker.Stop() }()

	r := &repl{
		ctx:     ctx,
		in:      bufio.NewScanner(cmd.InOrStdin()),
		out:     cmd.OutOrStdout(),
		tracker: tracker,
		stage:   wizard.NewDiscovery(rt.env, threadID, tracker),
	}

	if r.stage.Begin(state) == session.PhasePrompting {
		if err := r.recover(state); err != nil {
			return err
		}
		r.stage.Sync(state)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := rt.env.WatchStorage(watchCtx, r.stage.Store().Reload); err != nil {
			logger.LogError(err, "Session storage watch stopped")
		}
	}()

	r.show(state)
	return r.loop()
}

// recover asks whether to continue the stored interview.
func (r *repl) recover(state types.WorkflowState) error {
	existing := r.stage.Existing()
	fmt.Fprintf(r.out, "Found an unfinished interview from %s with %d answers.\n",
		existing.UpdatedAt.Local().Format("Jan 2 15:04"), existing.Exchanges)
	fmt.Fprint(r.out, promptStyle.Render("Resume it? [Y/n] "))

	answer := ""
	if r.in.Scan() {
		answer = strings.ToLower(strings.TrimSpace(r.in.Text()))
	}
	if answer == "n" || answer == "no" {
		fmt.Fprintln(r.out, hintStyle.Render("Starting a new interview."))
		return r.stage.StartFresh(state)
	}
	_, err := r.stage.Resume(r.ctx)
	return err
}

func (r *repl) loop() error {
	for {
		fmt.Fprint(r.out, promptStyle.Render("> "))
		if !r.in.Scan() {
			return r.in.Err()
		}
		line := strings.TrimSpace(r.in.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			fmt.Fprintln(r.out, hintStyle.Render("Interview saved. Run discover again to continue."))
			return nil
		case "/confirm":
			if err := r.stage.Confirm(r.ctx); err != nil {
				if !errors.HasCode(err, errors.ErrCodeConfirmBlocked) {
					return err
				}
				r.showError(err)
				continue
			}
			fmt.Fprintln(r.out, okStyle.Render("Discovery confirmed. Drafting will start shortly."))
			return nil
		case "/skip":
			if err := r.stage.Skip(r.ctx); err != nil {
				return err
			}
			fmt.Fprintln(r.out, okStyle.Render("Discovery skipped."))
			return nil
		case "/help":
			fmt.Fprintln(r.out, hintStyle.Render("Type an answer, or /confirm, /skip, /quit."))
			continue
		}

		answered := r.question
		if err := r.stage.Send(r.ctx, line); err != nil {
			r.showError(err)
			r.stage.DismissError()
			continue
		}
		r.printed = len(r.stage.Session().Messages)

		sent, err := r.tracker.Snapshot(r.ctx)
		if err != nil {
			return err
		}
		state, err := r.awaitReply(answered, len(sent.DiscoveryMessages))
		if err != nil {
			return err
		}
		r.stage.Sync(state)
		r.show(state)
		if state.CurrentStep != types.StepDiscovery {
			fmt.Fprintln(r.out, okStyle.Render("The interview has ended on the engine side."))
			return nil
		}
	}
}

// awaitReply waits until the engine asks its next question, leaves the
// discovery step, or the reply timeout passes.
func (r *repl) awaitReply(answered string, sentMessages int) (types.WorkflowState, error) {
	timer := time.NewTimer(discoverFlags.ReplyTimeout)
	defer timer.Stop()

	for {
		select {
		case st := <-r.tracker.Updates():
			if hasReplied(st, answered, sentMessages) {
				return st, nil
			}
		case <-r.tracker.Done():
			return r.tracker.Snapshot(r.ctx)
		case <-timer.C:
			fmt.Fprintln(r.out, hintStyle.Render("Still waiting for the next question..."))
			return r.tracker.Snapshot(r.ctx)
		case <-r.ctx.Done():
			return types.WorkflowState{}, r.ctx.Err()
		}
	}
}

// hasReplied reports whether st answers the message that brought the
// transcript to sentMessages entries. A poll that still carries the answered
// question without the answer is not a reply.
func hasReplied(st types.WorkflowState, answered string, sentMessages int) bool {
	if st.CurrentStep != types.StepDiscovery || types.IsTerminalStatus(st.Status) {
		return true
	}
	if st.PendingQuestion == "" || len(st.DiscoveryMessages) < sentMessages {
		return false
	}
	return st.PendingQuestion != answered || len(st.DiscoveryMessages) > sentMessages
}

// show prints messages not yet on screen and the interview progress.
func (r *repl) show(state types.WorkflowState) {
	s := r.stage.Session()
	if s == nil {
		return
	}
	if r.printed > len(s.Messages) {
		r.printed = len(s.Messages)
	}
	shownQuestion := false
	for _, m := range s.Messages[r.printed:] {
		switch m.Role {
		case types.RoleAgent:
			fmt.Fprintln(r.out, agentStyle.Render("Agent: ")+m.Content)
			shownQuestion = m.Content == state.PendingQuestion
		default:
			fmt.Fprintln(r.out, userStyle.Render("You:   "+m.Content))
		}
	}
	r.printed = len(s.Messages)
	if state.PendingQuestion != "" && !shownQuestion {
		fmt.Fprintln(r.out, agentStyle.Render("Agent: ")+state.PendingQuestion)
	}
	if state.PendingQuestion != "" {
		r.question = state.PendingQuestion
	}

	p := r.stage.PromptProgress(state)
	status := fmt.Sprintf("Question %d of %d", p.Current, p.Total)
	if remaining := r.stage.Remaining(); remaining > 0 {
		status += fmt.Sprintf(" · %d more answer(s) before you can /confirm", remaining)
	} else {
		status += " · /confirm when you are done"
	}
	fmt.Fprintln(r.out, hintStyle.Render(status))
}

func (r *repl) showError(err error) {
	fmt.Fprintln(r.out, errorStyle.Render(wizard.UserMessage(err)))
}

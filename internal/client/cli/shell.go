package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atinyakov/GophStudy/internal/client/scheduler"
	"github.com/atinyakov/GophStudy/internal/client/session"
	"github.com/atinyakov/GophStudy/internal/models"
)

const shellHelp = `Available commands:
  open <deck>    enter a deck's study tab
  setup <n>      confirm the daily new card limit
  rate <1-5>     rate the current card
  limit <n>      change the daily limit and restart today's session
  retry          retry the last failed or empty step
  leave          leave the current deck (progress is kept)
  show           show the current card's answer
  status         print the current deck state
  decks          list opened decks
  exit`

func init() {
	cmd := &cobra.Command{
		Use:   "shell [deck]",
		Short: "Start an interactive study shell",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runShell,
	}

	RootCmd.AddCommand(cmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	user, err := getUserID()
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	s, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	sh := &shell{reg: newRegistry(s, user, log), out: cmd.OutOrStdout()}
	if len(args) == 1 {
		sh.exec(cmd.Context(), []string{"open", args[0]})
	}
	sh.run(cmd.Context(), cmd.InOrStdin())
	return nil
}

// shell is the interactive loop over a registry of deck controllers.
type shell struct {
	reg     *session.Registry
	out     io.Writer
	current *session.Controller
}

func (s *shell) run(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, s.prompt())
		if !scanner.Scan() {
			break
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if s.exec(ctx, args) {
			return
		}
	}
}

func (s *shell) prompt() string {
	if s.current == nil {
		return "gophstudy> "
	}
	return fmt.Sprintf("gophstudy[%s]> ", s.current.DeckID())
}

// exec runs one command and reports whether the shell should quit.
func (s *shell) exec(ctx context.Context, args []string) bool {
	switch args[0] {
	case "help":
		fmt.Fprintln(s.out, shellHelp)
	case "open":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: open <deck>")
			return false
		}
		if s.current != nil && s.current.DeckID() != args[1] {
			s.current.Handle(ctx, session.LeaveTab{})
		}
		s.current = s.reg.Get(args[1])
		s.handle(ctx, session.EnterTab{})
	case "setup", "limit":
		n, ok := s.intArg(args, "<n>")
		if !ok {
			return false
		}
		if args[0] == "setup" {
			s.handle(ctx, session.ConfirmSetup{Limit: n})
		} else {
			s.handle(ctx, session.ChangeLimit{Limit: n})
		}
	case "rate":
		n, ok := s.intArg(args, "<1-5>")
		if !ok {
			return false
		}
		s.handle(ctx, session.Rate{Quality: models.Quality(n)})
	case "retry":
		s.handle(ctx, session.Retry{})
	case "leave":
		s.handle(ctx, session.LeaveTab{})
		s.current = nil
	case "show":
		if s.current == nil {
			fmt.Fprintln(s.out, "No deck open. Use 'open <deck>'.")
			return false
		}
		if snap := s.current.Snapshot(); snap.Card != nil {
			fmt.Fprintf(s.out, "Answer: %s\n", snap.Card.Back)
		} else {
			fmt.Fprintln(s.out, "No card to show")
		}
	case "status":
		if s.current == nil {
			fmt.Fprintln(s.out, "No deck open. Use 'open <deck>'.")
			return false
		}
		render(s.out, s.current.Snapshot())
	case "decks":
		for _, id := range s.reg.Decks() {
			fmt.Fprintf(s.out, "%s\t%s\n", id, s.reg.Get(id).Snapshot().State)
		}
	case "exit", "quit":
		fmt.Fprintln(s.out, "Bye")
		return true
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
	}
	return false
}

func (s *shell) intArg(args []string, usage string) (int, bool) {
	if len(args) < 2 {
		fmt.Fprintf(s.out, "Usage: %s %s\n", args[0], usage)
		return 0, false
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(s.out, "Not a number: %s\n", args[1])
		return 0, false
	}
	return n, true
}

func (s *shell) handle(ctx context.Context, ev session.Event) {
	if s.current == nil {
		fmt.Fprintln(s.out, "No deck open. Use 'open <deck>'.")
		return
	}
	snap, err := s.current.Handle(ctx, ev)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %s\n", describe(err))
	}
	if _, left := ev.(session.LeaveTab); !left {
		render(s.out, snap)
	}
}

func describe(err error) string {
	switch {
	case errors.Is(err, session.ErrBusy):
		return "still working on the previous request"
	case errors.Is(err, session.ErrInvalidLimit), errors.Is(err, models.ErrInvalidQuality):
		return err.Error()
	case errors.Is(err, session.ErrInvalidTransition):
		return "that command is not available right now"
	case scheduler.IsTransient(err):
		return fmt.Sprintf("scheduler unreachable, try 'retry' (%v)", err)
	default:
		return err.Error()
	}
}

func render(w io.Writer, snap session.Snapshot) {
	switch snap.State {
	case session.StateSetup:
		fmt.Fprintf(w, "New deck. How many new cards per day? Use 'setup <n>' (suggested %d).\n", snap.SuggestedLimit)
	case session.StateReviewing:
		if snap.Notice != nil && snap.Cursor == 0 {
			fmt.Fprintf(w, "A new day! %d new cards per day, %d cards known.\n",
				snap.Notice.NewFlashcardsPerDay, snap.Notice.KnowCardsCount)
		}
		if snap.Card == nil {
			fmt.Fprintln(w, "All cards rated. Use 'retry' to finish the session.")
			return
		}
		fmt.Fprintf(w, "Card %d/%d: %s\n", snap.Cursor+1, snap.QueueLen, snap.Card.Front)
		fmt.Fprintln(w, "Use 'show' to see the answer, then 'rate <1-5>'.")
	case session.StateEmpty:
		fmt.Fprintln(w, "No cards to review right now. Use 'retry' or 'limit <n>'.")
	case session.StateLoading:
		if snap.NeedsRetry {
			fmt.Fprintln(w, "Could not load today's cards. Use 'retry'.")
		} else {
			fmt.Fprintln(w, "Loading...")
		}
	case session.StateCompleted:
		if snap.Stats != nil {
			fmt.Fprintf(w, "Done for today! Retention %s over %d cards.\n",
				session.FormatRetention(snap.Stats.RetentionRate), snap.Stats.TotalAttempts)
		}
	default:
		fmt.Fprintf(w, "Deck %s: %s\n", snap.DeckID, snap.State)
	}
}

// Package cli implements the player's interactive prompt. It reads one
// command per line, drives a client.Player and prints the outcome.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	"github.com/codebreaker-project/codebreaker/internal/client"
	"github.com/codebreaker-project/codebreaker/internal/game"
	"github.com/codebreaker-project/codebreaker/internal/protocol"
)

const maxPlaytimeSecs = int(game.MaxDuration / time.Second)

// CLI is the player prompt.
type CLI struct {
	player *client.Player
	out    io.Writer
	outDir string
}

// NewCLI creates a prompt that prints to out and saves received files
// under outDir.
func NewCLI(player *client.Player, out io.Writer, outDir string) *CLI {
	return &CLI{
		player: player,
		out:    out,
		outDir: outDir,
	}
}

// Run reads commands from in until "exit", end of input or ctx is done.
// A running game is quit before returning. Every request is made from the
// calling goroutine, so cancelling ctx never races with a command in flight.
func (c *CLI) Run(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)

	// Reader goroutine: stdin blocks, so it cannot share the select below.
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			c.quit(context.Background())
			return
		}

		fmt.Fprint(c.out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			c.quit(context.Background())
			return
		case line, ok := <-lines:
			if !ok {
				// End of input behaves like exit.
				fmt.Fprintln(c.out)
				c.quit(ctx)
				return
			}
			if c.Execute(ctx, line) {
				return
			}
		}
	}
}

// Execute runs one command line and reports whether the prompt should exit.
func (c *CLI) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	name, rest, _ := strings.Cut(line, " ")
	args := strings.Fields(rest)

	switch strings.ToLower(name) {
	case "start":
		c.cmdStart(ctx, args)
	case "debug":
		c.cmdDebug(ctx, args)
	case "try":
		c.cmdTry(ctx, args)
	case "show_trials", "st":
		c.cmdShowTrials(ctx)
	case "scoreboard", "sb":
		c.cmdScoreboard(ctx)
	case "quit":
		c.quit(ctx)
	case "exit":
		c.quit(ctx)
		return true
	case "udp":
		c.cmdRaw(ctx, protocol.ChannelDatagram, rest)
	case "tcp":
		c.cmdRaw(ctx, protocol.ChannelStream, rest)
	case "help", "h", "?":
		c.printHelp()
	default:
		log.Warn().Str("command", name).Msg("unrecognized command")
		fmt.Fprintf(c.out, "Unrecognized command: %s. Type 'help' for available commands.\n", name)
	}
	return false
}

func (c *CLI) printHelp() {
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"Command", "Description"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	tw.AppendBulk([][]string{
		{"start PLID max_playtime", "Start a new game"},
		{"try C1 C2 C3 C4", "Guess the secret key"},
		{"show_trials | st", "Show the trials of the current or last game"},
		{"scoreboard | sb", "Show the top 10 scores"},
		{"quit", "Give up the current game"},
		{"exit", "Give up the current game and leave"},
		{"debug PLID max_playtime C1 C2 C3 C4", "Start a game with a known key"},
		{"udp LINE / tcp LINE", "Send a raw protocol line"},
		{"help", "Show this help message"},
	})
	tw.Render()
	c.printColors()
}

func (c *CLI) printColors() {
	fmt.Fprintln(c.out, "\nColors:")
	for _, col := range game.Colors {
		fmt.Fprintf(c.out, "\t%s - %s\n", col, col.Name())
	}
}

func (c *CLI) printStartUsage() {
	fmt.Fprintf(c.out, "Invalid syntax for \"start\" command.\n\n"+
		"Usage: start PLID max_playtime\n"+
		"\tPLID - 6 digit Player Identification number.\n"+
		"\tmax_playtime - time limit in seconds, must not be greater than %d.\n", maxPlaytimeSecs)
}

func (c *CLI) printDebugUsage() {
	fmt.Fprintf(c.out, "Invalid syntax for \"debug\" command.\n\n"+
		"Usage: debug PLID max_playtime C1 C2 C3 C4\n"+
		"\tPLID - 6 digit Player Identification number.\n"+
		"\tmax_playtime - time limit in seconds, must not be greater than %d.\n"+
		"\tCi - Color of the ith guess for the secret key.\n", maxPlaytimeSecs)
	c.printColors()
}

func (c *CLI) printTryUsage() {
	fmt.Fprint(c.out, "Invalid syntax for \"try\" command.\n\n"+
		"Usage: try C1 C2 C3 C4\n"+
		"\tCi - Color of the ith guess for the secret key.\n")
	c.printColors()
}

func (c *CLI) printUnreachable() {
	fmt.Fprintln(c.out, "Could not reach the game server, please try again...")
}

// parseGameArgs reads "PLID max_playtime".
func parseGameArgs(args []string) (int, time.Duration, bool) {
	if len(args) < 2 || len(args[0]) > 6 || len(args[1]) > 3 {
		return 0, 0, false
	}
	plid, err := strconv.Atoi(args[0])
	if err != nil || !game.ValidPLID(plid) {
		return 0, 0, false
	}
	secs, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, false
	}
	d := time.Duration(secs) * time.Second
	if d < game.MinDuration || d > game.MaxDuration {
		return 0, 0, false
	}
	return plid, d, true
}

func parseColors(args []string) (game.Trial, bool) {
	if len(args) != game.CodeLength {
		return game.Trial{}, false
	}
	var t game.Trial
	for i, a := range args {
		col, ok := game.ParseColorFold(a)
		if !ok {
			return game.Trial{}, false
		}
		t[i] = col
	}
	return t, true
}

func (c *CLI) cmdStart(ctx context.Context, args []string) {
	plid, budget, ok := parseGameArgs(args)
	if !ok || len(args) != 2 {
		c.printStartUsage()
		return
	}
	reply, err := c.player.Start(ctx, plid, budget)
	c.reportStart(reply, err, budget)
}

func (c *CLI) cmdDebug(ctx context.Context, args []string) {
	plid, budget, ok := parseGameArgs(args)
	if !ok || len(args) != 2+game.CodeLength {
		c.printDebugUsage()
		return
	}
	code, ok := parseColors(args[2:])
	if !ok {
		c.printDebugUsage()
		return
	}
	reply, err := c.player.Debug(ctx, plid, budget, code)
	c.reportStart(reply, err, budget)
}

func (c *CLI) reportStart(reply protocol.Reply, err error, budget time.Duration) {
	switch {
	case errors.Is(err, client.ErrUnreachable):
		c.printUnreachable()
	case reply.Status == protocol.StatusOK:
		fmt.Fprintf(c.out, "New game started (max %d sec).\n", int(budget/time.Second))
	case reply.Status == protocol.StatusNOK:
		fmt.Fprintln(c.out, "Game already in progress for this PLID, please wait until its end.")
	default:
		fmt.Fprintln(c.out, "Could not start a new game, please try again...")
	}
}

func (c *CLI) cmdTry(ctx context.Context, args []string) {
	guess, ok := parseColors(args)
	if !ok {
		c.printTryUsage()
		return
	}

	reply, err := c.player.Try(ctx, guess)
	switch {
	case errors.Is(err, client.ErrNotPlaying):
		fmt.Fprintln(c.out, "There is no game ongoing at the moment.\nPlease start a new game with \"start\".")
	case errors.Is(err, client.ErrUnreachable):
		c.printUnreachable()
	case reply.Status == protocol.StatusOK && reply.Pegs.Exact():
		fmt.Fprintf(c.out, "WELL DONE! You guessed the key in %d trials.\n", reply.Attempt)
	case reply.Status == protocol.StatusOK:
		fmt.Fprintf(c.out, "nB = %d, nW = %d\n", reply.Pegs.Black, reply.Pegs.White)
	case reply.Status == protocol.StatusDUP:
		fmt.Fprintf(c.out, "Trial \"%s\" was already attempted.\nTry another guess.\n", guess)
	case reply.Status == protocol.StatusENT:
		fmt.Fprintf(c.out, "GUESS LIMIT EXCEEDED! The correct key was \"%s\".\nBetter luck next time :(\n", reply.Secret)
	case reply.Status == protocol.StatusETM:
		fmt.Fprintf(c.out, "TIME LIMIT EXCEEDED! The correct key was \"%s\".\nBetter luck next time :(\n", reply.Secret)
	case reply.Status == protocol.StatusINV, reply.Status == protocol.StatusNOK:
		fmt.Fprintln(c.out, "Client state is out of sync with server. Please start a new game")
	default:
		fmt.Fprintln(c.out, "Could not handle attempt, please try again...")
	}
}

func (c *CLI) cmdShowTrials(ctx context.Context) {
	reply, err := c.player.ShowTrials(ctx)
	switch {
	case errors.Is(err, client.ErrNoPlayer):
		fmt.Fprintln(c.out, "No game was played yet. Please start a new game with \"start\".")
		return
	case errors.Is(err, client.ErrUnreachable):
		c.printUnreachable()
		return
	case reply.Status == protocol.StatusACT, reply.Status == protocol.StatusFIN:
		if c.saveAndPrint(reply, "Trials were written to file: %s\n") {
			return
		}
	}
	fmt.Fprintf(c.out, "Could not show trials for plid: \"%06d\"\n", c.player.PLID())
}

func (c *CLI) cmdScoreboard(ctx context.Context) {
	reply, err := c.player.Scoreboard(ctx)
	switch {
	case errors.Is(err, client.ErrUnreachable):
		c.printUnreachable()
		return
	case reply.Status == protocol.StatusEMPTY:
		fmt.Fprintln(c.out, "The scoreboard is empty, no game has been won yet.")
		return
	case reply.Status == protocol.StatusOK:
		if c.saveAndPrint(reply, "Scoreboard was written to file: %s\n") {
			return
		}
	}
	fmt.Fprintln(c.out, "Could not show the scoreboard, please try again...")
}

func (c *CLI) saveAndPrint(reply protocol.Reply, done string) bool {
	path, err := client.SaveArtifact(c.outDir, reply.Filename, reply.Payload)
	if err != nil {
		log.Warn().Err(err).Str("filename", reply.Filename).Msg("refusing to save server file")
		return false
	}
	fmt.Fprint(c.out, reply.Payload)
	if !strings.HasSuffix(reply.Payload, "\n") {
		fmt.Fprintln(c.out)
	}
	fmt.Fprintf(c.out, done, path)
	return true
}

func (c *CLI) quit(ctx context.Context) {
	if !c.player.Playing() {
		return
	}
	reply, err := c.player.Quit(ctx)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("quit failed")
	case reply.HasSecret():
		fmt.Fprintf(c.out, "Game over. The secret key was \"%s\".\n", reply.Secret)
	}
}

func (c *CLI) cmdRaw(ctx context.Context, ch protocol.Channel, line string) {
	text, err := c.player.Raw(ctx, ch, line+"\n")
	fmt.Fprint(c.out, client.ReplyOrSentinel(text, err))
}

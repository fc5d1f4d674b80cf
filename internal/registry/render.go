package registry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/codebreaker-project/codebreaker/internal/game"
)

// Artifact is a rendered text file served over the stream channel.
type Artifact struct {
	Filename string
	Active   bool
	Content  string
}

// Size is the payload length in bytes.
func (a Artifact) Size() int {
	return len(a.Content)
}

func renderTrialLog(snap game.SessionSnapshot) string {
	var b strings.Builder

	if snap.InProgress() {
		fmt.Fprintf(&b, "Active game found for player %06d\n", snap.PLID)
	} else {
		fmt.Fprintf(&b, "Last finalized game for player %06d\n", snap.PLID)
	}
	fmt.Fprintf(&b, "Game started: %s  Mode: %s  Time limit: %d seconds\n",
		snap.StartedAt.Format(time.DateTime), snap.Mode(), seconds(snap.MaxDuration))

	if !snap.InProgress() {
		fmt.Fprintf(&b, "Secret code: %s  Termination: %s\n", snap.Code, snap.Status)
	}
	b.WriteString("\n")

	if len(snap.Attempts) == 0 {
		b.WriteString("No trials registered yet.\n")
	} else {
		fmt.Fprintf(&b, "--- Transactions found: %d ---\n", len(snap.Attempts))
		tw := tablewriter.NewWriter(&b)
		tw.SetHeader([]string{"#", "TRIAL", "BLACK", "WHITE"})
		tw.SetAutoFormatHeaders(false)
		tw.SetAutoWrapText(false)
		tw.SetColumnAlignment([]int{
			tablewriter.ALIGN_RIGHT,
			tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_RIGHT,
			tablewriter.ALIGN_RIGHT,
		})
		for i, a := range snap.Attempts {
			tw.Append([]string{
				strconv.Itoa(i + 1),
				a.Trial.String(),
				strconv.Itoa(a.Pegs.Black),
				strconv.Itoa(a.Pegs.White),
			})
		}
		tw.Render()
	}

	b.WriteString("\n")
	switch {
	case snap.InProgress():
		fmt.Fprintf(&b, "-- %d seconds remaining to be completed --\n", seconds(snap.Remaining))
	case snap.Status == game.StatusTimedOut || (snap.Status == game.StatusPlaying && snap.Remaining == 0):
		fmt.Fprintf(&b, "-- ran out of time after %d seconds --\n", seconds(snap.MaxDuration))
	default:
		fmt.Fprintf(&b, "-- game ended after %d seconds --\n", seconds(snap.Elapsed))
	}
	return b.String()
}

func renderScoreboard(entries []ScoreEntry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "TOP %d SCORES\n\n", len(entries))

	tw := tablewriter.NewWriter(&b)
	tw.SetHeader([]string{"#", "SCORE", "PLAYER", "CODE", "NO TRIALS", "MODE", "DURATION"})
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_RIGHT,
	})
	for i, e := range entries {
		tw.Append([]string{
			strconv.Itoa(i + 1),
			strconv.Itoa(e.Trials),
			fmt.Sprintf("%06d", e.PLID),
			e.Code.Compact(),
			strconv.Itoa(e.Trials),
			e.Mode(),
			fmt.Sprintf("%ds", seconds(e.Duration)),
		})
	}
	tw.Render()
	return b.String()
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}

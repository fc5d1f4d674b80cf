package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/codebreaker-project/codebreaker/internal/game"
)

func TestParseRequest_Valid(t *testing.T) {
	rgby := game.NewTrial(game.Red, game.Green, game.Blue, game.Yellow)

	tests := []struct {
		line string
		want Request
	}{
		{"SNG 000001 600\n", Request{Command: CmdStart, PLID: 1, MaxDuration: 600 * time.Second}},
		{"SNG 999999 001\n", Request{Command: CmdStart, PLID: 999999, MaxDuration: time.Second}},
		{"DBG 123456 030 R G B Y\n", Request{Command: CmdDebug, PLID: 123456, MaxDuration: 30 * time.Second, Code: rgby}},
		{"TRY 123456 R G B Y 8\n", Request{Command: CmdTry, PLID: 123456, Trial: rgby, Attempt: 8}},
		{"QUT 000042\n", Request{Command: CmdQuit, PLID: 42}},
		{"STR 000042\n", Request{Command: CmdShowTrials, PLID: 42}},
		{"SSB\n", Request{Command: CmdScoreboard}},
	}

	for _, tt := range tests {
		t.Run(tt.line[:3], func(t *testing.T) {
			got, err := ParseRequest([]byte(tt.line))
			if err != nil {
				t.Fatalf("ParseRequest(%q): %v", tt.line, err)
			}
			if *got != tt.want {
				t.Errorf("ParseRequest(%q) = %+v, want %+v", tt.line, *got, tt.want)
			}
		})
	}
}

func TestParseRequest_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
		cmd  Command
	}{
		{"no newline", "SNG 000001 600", CmdStart},
		{"carriage return", "SNG 000001 600\r\n", CmdStart},
		{"double space", "SNG  000001 600\n", CmdStart},
		{"trailing space", "SNG 000001 600 \n", CmdStart},
		{"short plid", "SNG 00001 600\n", CmdStart},
		{"plid zero", "SNG 000000 600\n", CmdStart},
		{"time zero", "SNG 000001 000\n", CmdStart},
		{"time too long", "SNG 000001 601\n", CmdStart},
		{"time not padded", "SNG 000001 60\n", CmdStart},
		{"signed plid", "SNG +00001 600\n", CmdStart},
		{"debug bad color", "DBG 000001 600 R G B X\n", CmdDebug},
		{"debug lower case", "DBG 000001 600 r G B Y\n", CmdDebug},
		{"debug missing color", "DBG 000001 600 R G B\n", CmdDebug},
		{"try attempt zero", "TRY 000001 R G B Y 0\n", CmdTry},
		{"try attempt nine", "TRY 000001 R G B Y 9\n", CmdTry},
		{"try attempt two digits", "TRY 000001 R G B Y 01\n", CmdTry},
		{"try color word", "TRY 000001 RED G B Y 1\n", CmdTry},
		{"quit extra field", "QUT 000001 x\n", CmdQuit},
		{"scoreboard with arg", "SSB 000001\n", CmdScoreboard},
		{"two lines", "QUT 000001\nQUT 000002\n", CmdQuit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.line))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Command != tt.cmd {
				t.Errorf("ParseError command = %v, want %s", pe, tt.cmd)
			}
		})
	}
}

func TestParseRequest_Unknown(t *testing.T) {
	for _, line := range []string{"", "\n", "HELLO\n", "sng 000001 600\n", "RSG OK\n"} {
		_, err := ParseRequest([]byte(line))
		if !errors.Is(err, ErrUnknownCommand) {
			t.Errorf("ParseRequest(%q) err = %v, want ErrUnknownCommand", line, err)
		}
	}
}

func TestParseRequest_TooLong(t *testing.T) {
	line := "SNG 000001 600" + string(make([]byte, MaxRequestSize)) + "\n"
	if _, err := ParseRequest([]byte(line)); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestCommand_Channel(t *testing.T) {
	for _, c := range []Command{CmdStart, CmdDebug, CmdTry, CmdQuit} {
		if c.Channel() != ChannelDatagram {
			t.Errorf("%s channel = %s", c, c.Channel())
		}
	}
	for _, c := range []Command{CmdShowTrials, CmdScoreboard} {
		if c.Channel() != ChannelStream {
			t.Errorf("%s channel = %s", c, c.Channel())
		}
	}
	if Command("XYZ").Known() {
		t.Error("XYZ should be unknown")
	}
}

func TestCommandOf(t *testing.T) {
	tests := map[string]Command{
		"SNG 000001 600\n": CmdStart,
		"SSB\n":            CmdScoreboard,
		"SSB":              CmdScoreboard,
		"SSBX\n":           "",
		"XYZ 1\n":          "",
		"S":                "",
	}
	for in, want := range tests {
		if got := CommandOf(in); got != want {
			t.Errorf("CommandOf(%q) = %q, want %q", in, got, want)
		}
	}
}

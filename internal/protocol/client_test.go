package protocol

import (
	"testing"
	"time"

	"github.com/codebreaker-project/codebreaker/internal/game"
)

func TestEncoders(t *testing.T) {
	code := game.NewTrial(game.Red, game.Green, game.Blue, game.Yellow)

	tests := []struct {
		got, want string
	}{
		{EncodeStart(1, 600*time.Second), "SNG 000001 600\n"},
		{EncodeStart(42, 5*time.Second), "SNG 000042 005\n"},
		{EncodeDebug(7, 90*time.Second, code), "DBG 000007 090 R G B Y\n"},
		{EncodeTry(123456, code, 3), "TRY 123456 R G B Y 3\n"},
		{EncodeQuit(9), "QUT 000009\n"},
		{EncodeShowTrials(9), "STR 000009\n"},
		{EncodeScoreboard(), "SSB\n"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("encoded %q, want %q", tt.got, tt.want)
		}
	}
}

func TestEncodeThenParse(t *testing.T) {
	code := game.NewTrial(game.Purple, game.Purple, game.Orange, game.Yellow)
	for _, line := range []string{
		EncodeStart(555, 120*time.Second),
		EncodeDebug(555, 120*time.Second, code),
		EncodeTry(555, code, 8),
		EncodeQuit(555),
		EncodeShowTrials(555),
		EncodeScoreboard(),
	} {
		if _, err := ParseRequest([]byte(line)); err != nil {
			t.Errorf("ParseRequest(%q): %v", line, err)
		}
	}
}

func TestDecodeReply(t *testing.T) {
	rgby := game.NewTrial(game.Red, game.Green, game.Blue, game.Yellow)

	tests := []struct {
		name string
		cmd  Command
		text string
		want Reply
	}{
		{"start ok", CmdStart, "RSG OK\n", Reply{Code: ReplyStart, Status: StatusOK}},
		{"start nok", CmdStart, "RSG NOK\n", Reply{Code: ReplyStart, Status: StatusNOK}},
		{"debug err", CmdDebug, "RDB ERR\n", Reply{Code: ReplyDebug, Status: StatusERR}},
		{"try ok", CmdTry, "RTR OK 2 1 2\n", Reply{Code: ReplyTry, Status: StatusOK, Attempt: 2, Pegs: game.Pegs{Black: 1, White: 2}}},
		{"try ent", CmdTry, "RTR ENT R G B Y\n", Reply{Code: ReplyTry, Status: StatusENT, Secret: rgby}},
		{"try etm", CmdTry, "RTR ETM R G B Y\n", Reply{Code: ReplyTry, Status: StatusETM, Secret: rgby}},
		{"try dup", CmdTry, "RTR DUP\n", Reply{Code: ReplyTry, Status: StatusDUP}},
		{"quit ok", CmdQuit, "RQT OK R G B Y\n", Reply{Code: ReplyQuit, Status: StatusOK, Secret: rgby}},
		{"quit nok", CmdQuit, "RQT NOK\n", Reply{Code: ReplyQuit, Status: StatusNOK}},
		{"generic", CmdTry, "ERR\n", Reply{Code: ReplyGeneric, Status: StatusERR}},
		{"str nok", CmdShowTrials, "RST NOK\n", Reply{Code: ReplyShowTrials, Status: StatusNOK}},
		{"ssb empty", CmdScoreboard, "RSS EMPTY\n", Reply{Code: ReplyScoreboard, Status: StatusEMPTY}},
		{"str act", CmdShowTrials, "RST ACT STATE_000001.txt 5 a b\nc\n",
			Reply{Code: ReplyShowTrials, Status: StatusACT, Filename: "STATE_000001.txt", Size: 5, Payload: "a b\nc"}},
		{"ssb ok exact size", CmdScoreboard, "RSS OK T.txt 3 ab\n",
			Reply{Code: ReplyScoreboard, Status: StatusOK, Filename: "T.txt", Size: 3, Payload: "ab\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeReply(tt.cmd, tt.text); got != tt.want {
				t.Errorf("DecodeReply(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestDecodeReply_Unparsable(t *testing.T) {
	tests := []struct {
		cmd  Command
		text string
	}{
		{CmdStart, ""},
		{CmdStart, "RSG OK"},
		{CmdStart, "RSG MAYBE\n"},
		{CmdStart, "RDB OK\n"},
		{CmdTry, "RTR OK 2 1\n"},
		{CmdTry, "RTR OK 2 3 3\n"},
		{CmdTry, "RTR OK x 1 1\n"},
		{CmdTry, "RTR OK +1 2 1\n"},
		{CmdTry, "RTR OK 1 02 1\n"},
		{CmdTry, "RTR OK 1 2 -0\n"},
		{CmdTry, "RTR ENT R G B\n"},
		{CmdTry, "RTR DUP extra\n"},
		{CmdQuit, "RQT OK\n"},
		{CmdShowTrials, "RST ACT f.txt 10 short\n"},
		{CmdShowTrials, "RST OK f.txt 1 x\n"},
		{CmdShowTrials, "RST ACT f.txt -1 \n"},
		{CmdScoreboard, "RSS OK\n"},
		{CmdScoreboard, "RSS OK f.txt two xx\n"},
		{CmdScoreboard, "\x00\xff"},
	}

	for _, tt := range tests {
		got := DecodeReply(tt.cmd, tt.text)
		if got.Status != StatusUnparsable {
			t.Errorf("DecodeReply(%s, %q) = %+v, want unparsable", tt.cmd, tt.text, got)
		}
	}
}

func TestReplyMatches(t *testing.T) {
	tests := []struct {
		req, reply string
		want       bool
	}{
		{"SNG 000001 600\n", "RSG OK\n", true},
		{"SNG 000001 600\n", "RTR OK 1 0 0\n", false},
		{"TRY 000001 R G B Y 1\n", "RTR DUP\n", true},
		{"TRY 000001 R G B Y 1\n", "ERR\n", true},
		{"bogus\n", "RSG OK\n", false},
	}
	for _, tt := range tests {
		if got := ReplyMatches(tt.req, tt.reply); got != tt.want {
			t.Errorf("ReplyMatches(%q, %q) = %v, want %v", tt.req, tt.reply, got, tt.want)
		}
	}
}

func TestReply_HasSecret(t *testing.T) {
	if !(Reply{Code: ReplyTry, Status: StatusETM}).HasSecret() {
		t.Error("ETM reveals the code")
	}
	if (Reply{Code: ReplyTry, Status: StatusOK}).HasSecret() {
		t.Error("OK does not reveal the code")
	}
}

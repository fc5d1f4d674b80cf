// Player is the interactive client for the code-guessing game server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/codebreaker-project/codebreaker/internal/cli"
	"github.com/codebreaker-project/codebreaker/internal/client"
	"github.com/codebreaker-project/codebreaker/internal/util"
)

const (
	defaultHost = "localhost"
	defaultPort = "58000"
)

func main() {
	host := flag.String("n", defaultHost, "game server host")
	port := flag.String("p", defaultPort, "game server port")
	debug := flag.Bool("d", false, "debug logging")
	outDir := flag.String("o", ".", "directory for received trial logs and scoreboards")
	logDir := flag.String("log-dir", "logs", "log directory")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-n ip] [-p port] [-d] [-o dir]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() > 0 {
		flag.Usage()
		os.Exit(1)
	}

	level := "info"
	if *debug {
		level = "debug"
	}
	// The console belongs to the prompt.
	if err := util.InitLogger(util.LogConfig{
		App:        "player",
		Level:      level,
		Directory:  *logDir,
		MaxBackups: 5,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	addr := net.JoinHostPort(*host, *port)
	log.Debug().Str("addr", addr).Msg("player starting")

	datagram := client.NewDatagramTransport(addr, client.DatagramPolicy)
	defer datagram.Close()
	stream := client.NewStreamTransport(addr, client.StreamPolicy)

	// Ctrl-C cancels the prompt, which quits a running game before returning.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prompt := cli.NewCLI(client.NewPlayer(datagram, stream), os.Stdout, *outDir)
	prompt.Run(ctx, os.Stdin)
	log.Debug().Msg("player stopped")
}

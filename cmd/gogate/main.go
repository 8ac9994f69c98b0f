// Command gogate serves the session gate and its maintenance tasks.
//
//	gogate [serve] [-config path] [-addr :8080]
//	gogate hash    [-config path]
//	gogate migrate [-config path]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx, args)
	case "hash":
		err = runHash(args)
	case "migrate":
		err = runMigrate(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want serve, hash or migrate)\n", cmd)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "gogate %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "", "config file (default: $GOGATE_CONFIG, ./gogate.yaml, /etc/gogate/config.yaml)")
}

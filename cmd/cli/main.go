package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/userledger/internal/client"
	"github.com/dmitrijs2005/userledger/internal/client/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, args, err := cli.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	token, err := cfg.Token()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	c, err := client.New(cfg.ServerEndpointAddr, token)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := cli.NewApp(c, os.Stdout).Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}

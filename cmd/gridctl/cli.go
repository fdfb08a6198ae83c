// cmd/gridctl/cli.go

package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chzyer/readline"
)

// command groups a handler with its help line for the dynamic help.
type command struct {
	help     string
	handler  func(c *cli, args string) error
	category string
}

type cli struct {
	baseURL  string
	token    string
	http     *http.Client
	rl       *readline.Instance
	rlConfig *readline.Config
	commands map[string]command
}

func newCLI(baseURL, token string, client *http.Client) *cli {
	c := &cli{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    client,
	}
	c.commands = c.getCommands()
	return c
}

func (c *cli) run() error {
	c.rlConfig = &readline.Config{
		Prompt:          colorPrompt("gridctl> "),
		HistoryFile:     "/tmp/gridctl_history.tmp",
		AutoComplete:    c.getCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	}

	var err error
	c.rl, err = readline.NewEx(c.rlConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer c.rl.Close()

	return c.mainLoop()
}

func (c *cli) mainLoop() error {
	for {
		input, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(input) == 0 {
					break
				}
				continue
			} else if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		cmd, args := getCommandAndRawArgs(input)
		handler, found := c.commands[cmd]
		if !found {
			fmt.Println(colorErr("Error: Unknown command. Type 'help' for commands: ", cmd))
			continue
		}

		startTime := time.Now()
		if err := handler.handler(c, args); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			fmt.Println(colorErr("Command failed: ", err))
		}
		if cmd != "clear" && cmd != "help" {
			fmt.Println(colorInfo("Request time: ", time.Since(startTime).Round(time.Millisecond)))
		}
	}
	fmt.Println(colorInfo("\nExiting gridctl. Goodbye!"))
	return nil
}

// getCommandAndRawArgs parses user input into a command and its arguments.
func getCommandAndRawArgs(input string) (string, string) {
	parts := strings.SplitN(input, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// errQuit ends the interactive loop.
var errQuit = errors.New("quit")

// controller is the part of the bridge client the console drives.
type controller interface {
	JoinSession(name string)
	CreateSession()
	LeaveSession()
	RequestList()
	SendKey(num int)
	SendDictation(text string)
	Pause()
	Resume()
	Accept()
	UpdateHost(host string)
}

const replHelp = `commands:
  join <name>   join a session
  create        create a session
  leave         leave the active session
  list          request the session list
  key <n>       pick option n
  say <text>    send dictation
  pause | resume | accept
  host <host>   switch bridge host (preset label or raw host)
  quit`

// dispatch applies one console line to c. lookupHost maps preset labels to
// hosts. It returns errQuit on quit.
func dispatch(line string, c controller, lookupHost func(string) string) error {
	verb, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(verb) {
	case "":
		return nil
	case "join", "j":
		if arg == "" {
			return fmt.Errorf("join: session name required")
		}
		c.JoinSession(arg)
	case "create", "new":
		c.CreateSession()
	case "leave":
		c.LeaveSession()
	case "list", "ls":
		c.RequestList()
	case "key", "k":
		num, err := strconv.Atoi(arg)
		if err != nil || num <= 0 {
			return fmt.Errorf("key: positive option number required")
		}
		c.SendKey(num)
	case "say", "s":
		if arg == "" {
			return fmt.Errorf("say: text required")
		}
		c.SendDictation(arg)
	case "pause":
		c.Pause()
	case "resume":
		c.Resume()
	case "accept", "y":
		c.Accept()
	case "host":
		host := lookupHost(arg)
		if host == "" {
			return fmt.Errorf("host: host required")
		}
		c.UpdateHost(host)
	case "quit", "exit", "q":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", verb)
	}
	return nil
}

// readLines sends stdin lines to the returned channel until EOF or ctx ends.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

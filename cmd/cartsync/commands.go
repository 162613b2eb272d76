package main

import (
	"errors"
	"fmt"
	"strings"
)

type command struct {
	name string
	args []string
}

var errEmptyLine = errors.New("empty line")

// arity is the number of required arguments; -1 takes the rest of the line.
var arity = map[string]int{
	"add":      1,
	"dec":      1,
	"rm":       1,
	"clear":    0,
	"fetch":    0,
	"show":     0,
	"products": 0,
	"login":    1,
	"signin":   2,
	"logout":   0,
	"checkout": -1,
	"help":     0,
	"quit":     0,
}

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, errEmptyLine
	}
	name := strings.ToLower(fields[0])
	want, ok := arity[name]
	if !ok {
		return command{}, fmt.Errorf("unknown command %q (try help)", fields[0])
	}
	args := fields[1:]
	if want >= 0 && len(args) != want {
		return command{}, fmt.Errorf("%s takes %d argument(s)", name, want)
	}
	return command{name: name, args: args}, nil
}

// parseCustomer splits "name | email | address".
func parseCustomer(args []string) (name, email, address string, err error) {
	parts := strings.Split(strings.Join(args, " "), "|")
	if len(parts) != 3 {
		return "", "", "", errors.New("usage: checkout <name> | <email> | <address>")
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]), nil
}

const helpText = `commands:
  add <id>        add one unit
  dec <id>        remove one unit
  rm <id>         remove the line
  clear           empty the cart
  fetch           reload the cart
  show            print the cart
  products        list the catalog
  login <token>   switch to a bearer token
  signin <u> <p>  log in through the auth service
  logout          drop the session
  checkout <name> | <email> | <address>
  quit`

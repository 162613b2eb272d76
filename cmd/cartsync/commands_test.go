package main

import (
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		name    string
		args    int
		wantErr bool
	}{
		{line: "add 3", name: "add", args: 1},
		{line: "  DEC 3 ", name: "dec", args: 1},
		{line: "clear", name: "clear"},
		{line: "signin mor_2314 83r5^_", name: "signin", args: 2},
		{line: "checkout Ada | ada@example.com | 1 Loop Rd", name: "checkout", args: 7},
		{line: "add", wantErr: true},
		{line: "clear now", wantErr: true},
		{line: "fly", wantErr: true},
	}
	for _, tt := range tests {
		cmd, err := parseCommand(tt.line)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tt.line)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tt.line, err)
		}
		if cmd.name != tt.name || len(cmd.args) != tt.args {
			t.Fatalf("%q: expected %s with %d args, got %+v", tt.line, tt.name, tt.args, cmd)
		}
	}

	if _, err := parseCommand("   "); !errors.Is(err, errEmptyLine) {
		t.Fatalf("expected errEmptyLine, got %v", err)
	}
}

func TestParseCustomer(t *testing.T) {
	name, email, address, err := parseCustomer([]string{"Ada", "Lovelace", "|", "ada@example.com", "|", "1", "Loop", "Rd"})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if name != "Ada Lovelace" || email != "ada@example.com" || address != "1 Loop Rd" {
		t.Fatalf("unexpected customer %q %q %q", name, email, address)
	}
	if _, _, _, err := parseCustomer([]string{"Ada"}); err == nil {
		t.Fatalf("expected usage error")
	}
}

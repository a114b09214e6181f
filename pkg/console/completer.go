package console

import (
	"strings"

	"github.com/chzyer/readline"
)

// commands is the static list of console commands.
var commands = []string{
	"left",
	"right",
	"nose",
	"state",
	"help",
	"h",
	"quit",
	"exit",
	"q",
}

// argCompletions maps commands to the arguments they accept.
var argCompletions = map[string][]string{
	"left":  {"on", "off"},
	"right": {"on", "off"},
	"nose":  {"in", "out"},
}

// Completer provides tab completion for console commands and their
// arguments. It implements the readline.AutoCompleter interface.
type Completer struct{}

// NewCompleter creates a new console completer.
func NewCompleter() *Completer {
	return &Completer{}
}

var _ readline.AutoCompleter = (*Completer)(nil)

// Do implements readline.AutoCompleter. The first word completes
// against the command list; arguments complete against the values that
// command accepts.
func (c *Completer) Do(line []rune, pos int) (newLine [][]rune, length int) {
	if len(line) == 0 || pos <= 0 {
		return nil, 0
	}
	if pos > len(line) {
		pos = len(line)
	}

	lineStr := string(line[:pos])
	wordStart := findWordStart(lineStr)
	currentWord := lineStr[wordStart:]
	if currentWord == "" {
		return nil, 0
	}

	if wordStart == 0 {
		return complete(commands, currentWord)
	}

	first := strings.Fields(lineStr)[0]
	if args, ok := argCompletions[first]; ok {
		return complete(args, currentWord)
	}
	return nil, 0
}

// findWordStart returns the index where the current word begins.
func findWordStart(s string) int {
	return strings.LastIndexAny(s, " \t") + 1
}

// complete returns the suffixes of candidates matching the prefix,
// each with a trailing space, plus the prefix length being completed.
func complete(candidates []string, prefix string) ([][]rune, int) {
	var matches [][]rune
	for _, cand := range candidates {
		if strings.HasPrefix(cand, prefix) {
			matches = append(matches, []rune(cand[len(prefix):]+" "))
		}
	}
	return matches, len(prefix)
}

package shell

import (
	"fmt"
	"regexp"
	"strings"
)

// parseInt is a small sscanf wrapper so command handlers can report
// "invalid argument" the way the original's from_string<size_t> throw
// does, without every caller repeating the Sscanf/error dance.
func parseInt(s string, out *int) (int, error) {
	return fmt.Sscanf(s, "%d", out)
}

// fuzzyFilter compiles filter as a regular expression for the search/
// list commands, the Go analogue of FuzzyFilter
// (_examples/original_source/src/CCvcDb_interactive.cc). An empty
// filter matches everything; an invalid regex falls back to a literal
// substring match rather than failing the command outright.
func fuzzyFilter(filter string) func(string) bool {
	if filter == "" {
		return func(string) bool { return true }
	}
	re, err := regexp.Compile(filter)
	if err != nil {
		return func(s string) bool { return strings.Contains(s, filter) }
	}
	return re.MatchString
}

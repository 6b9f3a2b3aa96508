package tui

import "strings"

// Kind identifies an interactive command.
type Kind int

const (
	KindEmpty Kind = iota
	KindAsk
	KindStream
	KindSources
	KindBook
	KindAuthor
	KindStats
	KindHelp
	KindQuit
	KindInvalid
)

// Command is one parsed input line.
type Command struct {
	Kind  Kind
	Query string
	// Scope is the book title or author name for scoped searches.
	Scope string
}

const helpText = `Commands:
  <question>                 answer with the top 3 sources
  stream <question>          stream the answer as it is generated
  sources <question>         list ranked passages only
  book:<title> - <question>  search within one book
  author:<name> - <question> search within one author's books
  stats                      library statistics
  help                       this help
  quit | exit | q            leave`

// Parse reads one input line. Scoped searches need the " - " separator
// between scope and question; without it the command is invalid.
func Parse(line string) Command {
	line = strings.TrimSpace(line)
	lower := strings.ToLower(line)
	switch lower {
	case "":
		return Command{Kind: KindEmpty}
	case "quit", "exit", "q":
		return Command{Kind: KindQuit}
	case "help":
		return Command{Kind: KindHelp}
	case "stats":
		return Command{Kind: KindStats}
	}

	if rest, ok := cutPrefixFold(line, "stream "); ok {
		return query(KindStream, rest)
	}
	if rest, ok := cutPrefixFold(line, "sources "); ok {
		return query(KindSources, rest)
	}
	if rest, ok := cutPrefixFold(line, "book:"); ok {
		return scoped(KindBook, rest)
	}
	if rest, ok := cutPrefixFold(line, "author:"); ok {
		return scoped(KindAuthor, rest)
	}
	return Command{Kind: KindAsk, Query: line}
}

func query(kind Kind, q string) Command {
	q = strings.TrimSpace(q)
	if q == "" {
		return Command{Kind: KindInvalid}
	}
	return Command{Kind: kind, Query: q}
}

func scoped(kind Kind, rest string) Command {
	scope, q, ok := strings.Cut(rest, " - ")
	scope, q = strings.TrimSpace(scope), strings.TrimSpace(q)
	if !ok || scope == "" || q == "" {
		return Command{Kind: KindInvalid}
	}
	return Command{Kind: kind, Query: q, Scope: scope}
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

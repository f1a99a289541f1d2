// Package command recognizes bot commands in chat message text.
package command

import (
	"fmt"
	"strings"
)

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "$bu"

// Kind classifies a parsed message.
type Kind int

const (
	// Ignore means the text is not addressed to the bot.
	Ignore Kind = iota
	// Help means the user asked for usage information.
	Help
	// Task means the text carries a task for the browser agent.
	Task
)

func (k Kind) String() string {
	switch k {
	case Help:
		return "help"
	case Task:
		return "task"
	default:
		return "ignore"
	}
}

// Command is the result of parsing a message.
type Command struct {
	Kind Kind
	Task string // trimmed task body, only meaningful for Kind == Task (may be empty)
}

// IsEmptyTask reports whether the command is a task with nothing after the prefix.
func (c Command) IsEmptyTask() bool {
	return c.Kind == Task && c.Task == ""
}

var helpWords = map[string]bool{
	"help":   true,
	"--help": true,
	"-h":     true,
}

// Parse classifies text against prefix. Text must start with prefix followed
// by a single space to be recognized; the remainder is trimmed.
func Parse(text, prefix string) Command {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	rest, ok := strings.CutPrefix(text, prefix+" ")
	if !ok {
		return Command{Kind: Ignore}
	}

	body := strings.TrimSpace(rest)
	if helpWords[strings.ToLower(body)] {
		return Command{Kind: Help}
	}
	return Command{Kind: Task, Task: body}
}

// HelpText returns the usage message shown for help requests.
func HelpText(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("*Browser Use Slack Bot*\n\n"+
		"Use `%[1]s <task>` to run a browser task.\n\n"+
		"Examples:\n"+
		"• `%[1]s Compare the price of gpt-4o and DeepSeek-V3`\n"+
		"• `%[1]s Find the latest news about AI on techcrunch.com`\n"+
		"• `%[1]s Search for job openings at OpenAI and summarize the requirements`",
		prefix)
}

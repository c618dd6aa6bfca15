package service

import (
	"fmt"
	"math/rand"
	"strings"
)

// commandFunc generates the system-style response body for a built-in chat
// command. arg is the remainder of the message after the command word.
type commandFunc func(authorName, arg string) string

// commands is the dispatch table for "/"-prefixed message bodies. Unknown
// commands are not an error; they pass through as literal text.
var commands = map[string]commandFunc{
	"/roll":  rollCommand,
	"/flip":  flipCommand,
	"/8ball": oracleCommand,
}

// stubbed in tests
var randIntn = rand.Intn

// RunCommand dispatches a message body to its built-in command handler and
// returns the generated response and true, or ("", false) when the body is
// not a recognized command.
func RunCommand(body, authorName string) (string, bool) {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "/") {
		return "", false
	}

	name, arg, _ := strings.Cut(body, " ")
	handler, ok := commands[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return handler(authorName, strings.TrimSpace(arg)), true
}

func rollCommand(authorName, _ string) string {
	return fmt.Sprintf("[SYSTEM] 🎲 %s rolled a %d!", authorName, randIntn(6)+1)
}

func flipCommand(authorName, _ string) string {
	side := "heads"
	if randIntn(2) == 1 {
		side = "tails"
	}
	return fmt.Sprintf("[SYSTEM] 🪙 %s flipped a coin: %s!", authorName, side)
}

var oracleAnswers = []string{
	"It is certain.",
	"Without a doubt.",
	"Signs point to yes.",
	"Ask again later.",
	"Don't count on it.",
	"My sources say no.",
	"Very doubtful.",
}

func oracleCommand(authorName, arg string) string {
	answer := oracleAnswers[randIntn(len(oracleAnswers))]
	if arg == "" {
		return fmt.Sprintf("[SYSTEM] 🔮 The oracle tells %s: %s", authorName, answer)
	}
	return fmt.Sprintf("[SYSTEM] 🔮 %s asked %q — %s", authorName, arg, answer)
}

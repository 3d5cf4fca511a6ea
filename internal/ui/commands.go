package ui

import "strings"

type commandInfo struct {
	name  string
	usage string
	help  string
}

var commands = []commandInfo{
	{name: "/help", help: "Display this help message"},
	{name: "/bye", help: "Exit the application"},
	{name: "/debug", help: "Toggle the debug console"},
	{name: "/threads", help: "Pick a conversation thread"},
	{name: "/new", usage: "[title]", help: "Start a new thread"},
	{name: "/rename", usage: "<title>", help: "Rename the current thread"},
	{name: "/delete", help: "Delete the current thread (asks first)"},
	{name: "/docs", help: "List documents attached to the current thread"},
	{name: "/rmdoc", usage: "<id>", help: "Remove a document from the current thread"},
	{name: "/upload", usage: "<path>", help: "Upload a document (images are attached to the next message)"},
	{name: "/image", usage: "<path>", help: "Attach an image to the next message"},
	{name: "/search", help: "Toggle web search"},
	{name: "/think", help: "Toggle deep reasoning"},
	{name: "/stop", help: "Stop the current reply (Esc also works)"},
}

// parseCommand splits a slash command into its name and argument. ok is
// false for ordinary messages.
func parseCommand(input string) (name, arg string, ok bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(input, " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}

func helpText() string {
	var b strings.Builder
	b.WriteString("Here are some commands you can use:\n")
	for _, cmd := range commands {
		b.WriteString("- ")
		b.WriteString(cmd.name)
		if cmd.usage != "" {
			b.WriteString(" ")
			b.WriteString(cmd.usage)
		}
		b.WriteString(": ")
		b.WriteString(cmd.help)
		b.WriteString("\n")
	}
	return b.String()
}

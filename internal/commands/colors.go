package commands

// Minimal ANSI helpers for status output.

func red(s string) string    { return "\033[31m" + s + "\033[0m" }
func green(s string) string  { return "\033[32m" + s + "\033[0m" }
func yellow(s string) string { return "\033[33m" + s + "\033[0m" }

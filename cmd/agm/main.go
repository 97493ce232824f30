// Package main is the entry point for the agm command line tool.
package main

import "github.com/j-veylop/antigravity-account-manager/internal/commands"

func main() {
	commands.Execute()
}

// Package main is the entry point for the mpymake CLI.
package main

import "github.com/ZacxDev/mpymake/cmd"

func main() {
	cmd.Execute()
}

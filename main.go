package main

import "github.com/gaiakodi/gaiasource/internal/cmd"

func main() {
	cmd.Execute()
}

package main

import (
	cmd "github.com/kerbaras/shelf/cmd/shelf"
)

func main() {
	cmd.Execute()
}

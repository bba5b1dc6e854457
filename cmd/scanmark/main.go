package main

import "github.com/scanmark/scanmark/cmd/scanmark/cmd"

func main() {
	cmd.Execute()
}

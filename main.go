package main

import "github.com/brogergvhs/mangapark-dl/cmd"

func main() {
	cmd.Execute()
}

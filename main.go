package main

import "chordkv/cmd"

func main() {
	cmd.Execute()
}

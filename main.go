package main

import "summary-fusion/cmd"

func main() {
	cmd.Execute()
}

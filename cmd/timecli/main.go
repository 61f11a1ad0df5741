package main

import "udptime/cmd/timecli/cmd"

func main() {
	cmd.Execute()
}

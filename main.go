package main

import "github.com/tkeffer/weewx-xaggs/cmd"

func main() {
	cmd.Execute()
}

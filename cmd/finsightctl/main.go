package main

import "github.com/finsight/finsight/launcher/cmd"

func main() {
	cmd.Execute()
}

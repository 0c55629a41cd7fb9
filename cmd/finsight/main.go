package main

import "github.com/finsight/finsight/server/cmd"

func main() {
	cmd.Execute()
}

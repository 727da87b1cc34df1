package main

import "github.com/dawsched/core/cmd/dawsched/cmd"

func main() {
	cmd.Execute()
}

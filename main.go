package main

import (
	"stemboard/cmd"
)

func main() {
	cmd.Execute()
}

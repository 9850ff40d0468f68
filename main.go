package main

import (
	"github.com/esm-dev/tsload/cli"
)

func main() {
	cli.Run()
}

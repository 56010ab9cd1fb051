package main

import (
	"github.com/justsurfingit/jobops-pipeline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		cli.ExitWithError("%v", err)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/drand/sigma/common/log"
	sigmacli "github.com/drand/sigma/internal/sigma-cli"
)

func main() {
	log.ConfigureDefaultLogger(os.Stderr, log.InfoLevel, false)
	app := sigmacli.CLI()
	if err := app.Run(os.Args); err != nil {
		fmt.Printf("%+v\n", err)
		os.Exit(1)
	}
}

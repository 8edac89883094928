// Package main is the mcc command itself.
package main

import (
	"log"
	"os"

	"github.com/isri-aist/MultiContactController/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

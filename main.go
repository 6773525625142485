package main

import (
	"log"

	"github.com/akozyrev/hh-scout/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

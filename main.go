package main

import (
	"log"

	"github.com/sheerif/eticketsv10/cmd"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}

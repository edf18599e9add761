package main

import (
	"log"

	"github.com/convoflow/convoflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

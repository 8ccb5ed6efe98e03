// Command approvod serves the approval engine over HTTP and validates
// definition and pipeline template documents.
package main

import (
	"log"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

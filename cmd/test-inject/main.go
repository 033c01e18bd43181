// Command test-inject is a manual test for text delivery.
// It waits 3 seconds, then copies, pastes or types test text.
// Focus a text editor before the countdown finishes.
//
// Usage:
//
//	go run ./cmd/test-inject [--method copy|paste|type] [--text "..."]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chaz8081/whisperclip/internal/inject"
)

func main() {
	method := flag.String("method", "copy", "delivery method: copy, paste or type")
	text := flag.String("text", "Hello from whisperclip!", "text to deliver")
	flag.Parse()

	fmt.Printf("Will deliver %q using %q method in 3 seconds...\n", *text, *method)
	fmt.Println("Focus a text editor now!")

	for i := 3; i > 0; i-- {
		fmt.Printf("%d...\n", i)
		time.Sleep(time.Second)
	}

	if err := inject.NewInjector(*method).Deliver(*text); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nDone!")
}

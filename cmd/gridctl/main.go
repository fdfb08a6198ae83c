// cmd/gridctl/main.go

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	addr := flag.String("addr", "http://localhost:5876", "Base URL of the grid-tools server.")
	token := flag.String("token", "", "Bearer token for write endpoints.")
	flag.Parse()

	c := newCLI(*addr, *token, &http.Client{Timeout: 30 * time.Second})

	fmt.Println(colorInfo("Connected to ", *addr, ". Type 'help' for commands."))
	if err := c.run(); err != nil {
		fmt.Println(colorErr("Client error: ", err))
		os.Exit(1)
	}
}

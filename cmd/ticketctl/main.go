package main

import "github.com/spec-kit/helpdesk-router/cmd/ticketctl/cmd"

func main() {
	cmd.Execute()
}

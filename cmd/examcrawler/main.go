package main

import (
	"examcrawler/cmd/examcrawler/commands"
	"examcrawler/internal/components/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}

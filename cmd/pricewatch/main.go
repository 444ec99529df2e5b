package main

import (
	"pricewatch-backend/cmd/pricewatch/commands"
	"pricewatch-backend/pkg/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}

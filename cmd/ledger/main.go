package main

import (
	"github.com/guildpoints/points-ledger/internal/service"
)

func main() {
	service.RunServer()
}

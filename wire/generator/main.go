package main

import (
	"github.com/outofforest/courier/wire"
	"github.com/outofforest/proton"
)

//go:generate go run .
func main() {
	proton.Generate("../types.proton.go",
		proton.Message[wire.Handshake](),
		proton.Message[wire.Shutdown](),
		proton.Message[wire.AddChannelListener](),
		proton.Message[wire.RemoveChannelListener](),
		proton.Message[wire.RemoveChannelAllListeners](),
		proton.Message[wire.RemoveListeners](),
		proton.Message[wire.SendMessage](),
		proton.Message[wire.RequestResponse](),
		proton.Message[wire.QueryState](),
		proton.Message[wire.QueryStateResponse](),
	)
}

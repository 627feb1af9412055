// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/minerva-ai/thinktank-cli/internal/mock"
)

// =============================================================================
// SERVE-MOCK COMMAND
// =============================================================================

// RunServeMock runs the mock backend standalone until interrupted:
//
//	thinktank serve-mock --addr 127.0.0.1:8080
//
// Useful for pointing other thinktank instances (or curl) at a local
// backend during development.
func RunServeMock(args *ArgParser) error {
	addr := args.FlagOrDefault("addr", "127.0.0.1:8080")

	srv := mock.NewServer()
	if err := srv.Start(addr); err != nil {
		return err
	}
	fmt.Println(SuccessStyle.Render("mock backend listening at " + srv.URL()))
	fmt.Println(DimStyle.Render("POST " + srv.URL() + "/api/chat  |  GET " + srv.URL() + "/health"))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Println(DimStyle.Render("shutting down"))
	return srv.Shutdown(context.Background())
}

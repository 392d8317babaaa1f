package main

import (
	"log/slog"

	"github.com/docuflow/docuflow/pkg/docuflow"
)

func main() {

	//you may do your own logger setup here or use this default one with slog
	docuflow.SetupLogger()

	if err := docuflow.Start(nil); err != nil {
		slog.Error("Engine exited with error", "error", err)
	}
}

package main

import (
	"github.com/vigil-dev/vigil/internal/cli"
	"github.com/vigil-dev/vigil/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}

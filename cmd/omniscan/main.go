package main

import (
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/cli"
)

func main() {
	cli.Execute()
}

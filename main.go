package main

import (
	"github.com/josephlewis42/smallsh/cmd"
	"github.com/josephlewis42/smallsh/core/shell"
)

func main() {
	shell.RunFailedChild()
	cmd.Execute()
}

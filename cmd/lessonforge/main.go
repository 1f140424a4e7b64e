package main

import (
	"github.com/lessonforge/lessonforge/internal/cmd"
	"github.com/lessonforge/lessonforge/internal/log"
)

func main() {
	defer log.RecoverPanic("main", nil)
	cmd.Execute()
}

package main

import (
	"github.com/Ryanmaxin/goTM/cmd"
)

func main() {
	cmd.Execute()
}

package main

import (
	"os"

	"decipher/cmd/decipher/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}

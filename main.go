package main

import "github.com/mmaker/polymarket-mm/cmd"

func main() {
	cmd.Execute()
}

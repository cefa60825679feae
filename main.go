package main

import "github.com/paiml/depyler-sub004/cmd"

func main() {
	cmd.Execute()
}

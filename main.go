package main

import "github.com/planetbun/scanova/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/0xsend/distributor/cmd"

func main() {
	cmd.Execute()
}

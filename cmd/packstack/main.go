package main

import "github.com/aweris/packstack/cmd/packstack/cmd"

func main() {
	cmd.Execute()
}

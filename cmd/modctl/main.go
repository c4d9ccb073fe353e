package main

import "github.com/Suhaibinator/SModule/internal/cli"

func main() {
	cli.Execute()
}

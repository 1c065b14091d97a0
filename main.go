package main

import "github.com/khanhnv2901/seca-recon/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}

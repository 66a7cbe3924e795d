package main

import "github.com/opskit/redeploy/cmd"

func main() {
	cmd.Execute()
}

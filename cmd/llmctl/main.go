package main

import "llm-engine-service/internal/cli"

func main() {
	cli.Execute()
}

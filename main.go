package main

import "pdfrag/cmd"

func main() {
	cmd.Execute()
}

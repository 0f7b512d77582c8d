package main

import "github.com/KaramelBytes/excelytics/cmd"

func main() {
	cmd.Execute()
}

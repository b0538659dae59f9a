/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "chatcart/cmd"

func main() {
	cmd.Execute()
}

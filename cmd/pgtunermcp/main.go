package main

import (
	"fmt"
	"os"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("pgtunermcp — PostgreSQL performance tuning MCP server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pgtunermcp serve     Start the MCP server")
	fmt.Println("  pgtunermcp doctor    Validate configuration and print agent snippets")
	fmt.Println("  pgtunermcp --help    Show this help message")
}

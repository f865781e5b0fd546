package main

import (
	"fmt"
	"os"

	"findit/internal/apispec"
)

func main() {
	path := apispec.DefaultPath
	switch len(os.Args) {
	case 1:
	case 2:
		path = os.Args[1]
	default:
		fmt.Fprintf(os.Stderr, "usage: %s [openapi.yaml]\n", os.Args[0])
		os.Exit(2)
	}

	doc, err := apispec.Load(path)
	if err != nil {
		exitErr(err)
	}
	if err := doc.Validate(); err != nil {
		exitErr(err)
	}
	fmt.Printf("OpenAPI check passed: %d operations.\n", len(doc.Operations()))
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "OpenAPI check failed:\n%v\n", err)
	os.Exit(1)
}

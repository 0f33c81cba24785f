// Package id generates opaque identifiers.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Length is the length of identifiers returned by Generate.
const Length = 24

// Generate returns a Length-character alphanumeric nanoid.
func Generate() string {
	return GenerateN(Length)
}

// GenerateN returns an n-character alphanumeric nanoid.
func GenerateN(n int) string {
	id, err := gonanoid.Generate(alphanumeric, n)
	if err != nil {
		panic(fmt.Sprintf("generate nanoid: %v", err))
	}
	return id
}
